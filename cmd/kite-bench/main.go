// Benchmark tool for testing Kite against a labeled complaints dataset.
//
// Usage:
//   go run cmd/kite-bench/main.go -csv /path/to/complaints.csv -url http://localhost:8080
//
// This tool:
//   1. Reads labeled complaint data (with expected decisions)
//   2. Sends each complaint to Kite for classification
//   3. Compares Kite's decision (refund/deny/escalate) with the label
//   4. Calculates per-decision accuracy and a confusion matrix
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledComplaint represents a row from the benchmark dataset.
type LabeledComplaint struct {
	OrderID          string
	CustomerID       string
	ComplaintText    string
	IssueType        string
	OrderValue       float64
	RefundHistory30d int
	ExpectedDecision string
}

// ClassifyRequest is the Kite API request format.
type ClassifyRequest struct {
	OrderID          string   `json:"order_id,omitempty"`
	CustomerID       string   `json:"customer_id,omitempty"`
	ComplaintText    string   `json:"complaint_text"`
	IssueType        string   `json:"issue_type,omitempty"`
	OrderValue       *float64 `json:"order_value,omitempty"`
	RefundHistory30d *int     `json:"refund_history_30d,omitempty"`
}

// ClassifyResponse is the subset of the Kite response the benchmark reads.
type ClassifyResponse struct {
	ComplaintID string  `json:"complaint_id"`
	Decision    string  `json:"decision"`
	Confidence  float64 `json:"confidence"`
	Source      string  `json:"source"`
	Severity    string  `json:"severity"`
	FraudRisk   string  `json:"fraud_risk"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	Correct   int64
	Incorrect int64

	TotalProcessed int64
	TotalErrors    int64

	ProcessingTimeMs int64

	mu        sync.Mutex
	confusion map[string]map[string]int64 // expected -> predicted -> count
	bySource  map[string]int64
}

func (m *Metrics) record(expected, predicted, source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.confusion[expected] == nil {
		m.confusion[expected] = make(map[string]int64)
	}
	m.confusion[expected][predicted]++
	m.bySource[source]++
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled complaints CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Kite base URL")
	limit := flag.Int("limit", 10000, "Maximum complaints to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each complaint result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: kite-bench -csv /path/to/complaints.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║         KITE BENCHMARK - Complaint Decision Accuracy          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:  %s\n", *csvPath)
	fmt.Printf("Kite URL:  %s\n", *baseURL)
	fmt.Printf("Workers:   %d\n", *workers)
	fmt.Printf("Limit:     %d\n", *limit)
	fmt.Println()

	// Check Kite is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kite not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kite is running:")
		fmt.Println("  cd kite && go run cmd/kite/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kite is healthy")

	// Read labeled data
	fmt.Printf("\nReading complaints from %s...\n", *csvPath)
	complaints, err := readComplaintsCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d labeled complaints\n", len(complaints))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(complaints, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readComplaintsCSV(path string, limit int) ([]LabeledComplaint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	if _, ok := colIndex["complaint_text"]; !ok {
		return nil, fmt.Errorf("CSV must have a complaint_text column")
	}
	if _, ok := colIndex["expected_decision"]; !ok {
		return nil, fmt.Errorf("CSV must have an expected_decision column")
	}

	get := func(record []string, name string) string {
		i, ok := colIndex[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var complaints []LabeledComplaint

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		orderValue, _ := strconv.ParseFloat(get(record, "order_value"), 64)
		refunds, _ := strconv.Atoi(get(record, "refund_history_30d"))

		c := LabeledComplaint{
			OrderID:          get(record, "order_id"),
			CustomerID:       get(record, "customer_id"),
			ComplaintText:    get(record, "complaint_text"),
			IssueType:        get(record, "issue_type"),
			OrderValue:       orderValue,
			RefundHistory30d: refunds,
			ExpectedDecision: get(record, "expected_decision"),
		}
		if c.ComplaintText == "" || c.ExpectedDecision == "" {
			continue
		}

		complaints = append(complaints, c)

		if limit > 0 && len(complaints) >= limit {
			break
		}
	}

	return complaints, nil
}

func runBenchmark(complaints []LabeledComplaint, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{
		confusion: make(map[string]map[string]int64),
		bySource:  make(map[string]int64),
	}

	// Create work channel
	work := make(chan LabeledComplaint, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for c := range work {
				start := time.Now()
				result, err := classifyComplaint(client, baseURL, c)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", c.OrderID, err)
					}
					continue
				}

				metrics.record(c.ExpectedDecision, result.Decision, result.Source)
				if result.Decision == c.ExpectedDecision {
					atomic.AddInt64(&metrics.Correct, 1)
				} else {
					atomic.AddInt64(&metrics.Incorrect, 1)
				}

				if verbose {
					status := "✓"
					if result.Decision != c.ExpectedDecision {
						status = "✗"
					}
					text := c.ComplaintText
					if len(text) > 40 {
						text = text[:40]
					}
					fmt.Printf("%s %-40s | Expected: %-8s | Kite: %-8s (%.2f, %s)\n",
						status, text, c.ExpectedDecision, result.Decision, result.Confidence, result.Source)
				}
			}
		}()
	}

	// Send work
	for _, c := range complaints {
		work <- c
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func classifyComplaint(client *http.Client, baseURL string, c LabeledComplaint) (*ClassifyResponse, error) {
	req := ClassifyRequest{
		OrderID:       c.OrderID,
		CustomerID:    c.CustomerID,
		ComplaintText: c.ComplaintText,
		IssueType:     c.IssueType,
	}
	if c.OrderValue > 0 {
		req.OrderValue = &c.OrderValue
	}
	if c.RefundHistory30d > 0 {
		req.RefundHistory30d = &c.RefundHistory30d
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ClassifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

var decisionOrder = []string{"refund", "deny", "escalate"}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Correct:          %d\n", m.Correct)
	fmt.Printf("   Incorrect:        %d\n", m.Incorrect)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX (expected → predicted)\n")
	fmt.Printf("   %-10s", "")
	for _, p := range decisionOrder {
		fmt.Printf(" %9s", p)
	}
	fmt.Println()
	for _, e := range decisionOrder {
		fmt.Printf("   %-10s", e)
		for _, p := range decisionOrder {
			fmt.Printf(" %9d", m.confusion[e][p])
		}
		fmt.Println()
	}

	accuracy := float64(0)
	if m.Correct+m.Incorrect > 0 {
		accuracy = float64(m.Correct) / float64(m.Correct+m.Incorrect)
	}

	fmt.Printf("\n🎯 DECISION METRICS\n")
	fmt.Printf("   Accuracy:   %.4f  (decisions matching the label)\n", accuracy)
	for _, e := range decisionOrder {
		var total, hit int64
		for p, n := range m.confusion[e] {
			total += n
			if p == e {
				hit = n
			}
		}
		if total > 0 {
			fmt.Printf("   %-9s %.4f  (%d/%d)\n", e+":", float64(hit)/float64(total), hit, total)
		}
	}

	fmt.Printf("\n🔍 DECISION SOURCES\n")
	for _, src := range []string{"policy", "ml", "system"} {
		if n := m.bySource[src]; n > 0 {
			fmt.Printf("   %-8s %d (%.2f%%)\n", src+":", n, 100*float64(n)/float64(m.TotalProcessed))
		}
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f req/sec\n", rps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	switch {
	case accuracy >= 0.9:
		fmt.Println("   ✅ Excellent accuracy - rules cover the dataset well")
	case accuracy >= 0.7:
		fmt.Println("   ⚠️  Good accuracy - review the confusion matrix for gaps")
	default:
		fmt.Println("   ❌ Low accuracy - rules or model need tuning")
	}

	fmt.Println()
}
