package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Input feature order expected by the exported model.
const featureCount = 4

// Order statuses are encoded as their index in this list; anything else
// maps to -1.
var statusEncoding = []string{
	"late_delivery",
	"missing_delivery",
	"wrong_item",
	"damaged_item",
	"driver_issue",
	"overcharge",
	"general_complaint",
}

// ONNXClassifier runs a local complaint-decision model through the ONNX
// runtime. The bundle directory holds model.onnx plus label_map.json
// mapping output indices to decision labels.
type ONNXClassifier struct {
	session *ort.AdvancedSession
	labels  []string

	input  *ort.Tensor[float32]
	output *ort.Tensor[float32]

	// The session tensors are reused across calls; Run is serialized.
	mu sync.Mutex
}

// ErrNoModel is returned when the bundle directory has no model file.
var ErrNoModel = errors.New("no model bundle found")

// LoadONNXClassifier initializes the ONNX session from a bundle dir.
// Returns ErrNoModel when the directory or model file is absent, which
// callers treat as "run without ML".
func LoadONNXClassifier(bundleDir, libraryPath string) (*ONNXClassifier, error) {
	if bundleDir == "" {
		return nil, ErrNoModel
	}

	modelPath := filepath.Join(bundleDir, "model.onnx")
	if _, err := os.Stat(modelPath); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoModel
		}
		return nil, fmt.Errorf("stat model file: %w", err)
	}

	libPath := resolveSharedLibraryPath(libraryPath)
	if libPath == "" {
		return nil, fmt.Errorf("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	labels, err := loadLabels(filepath.Join(bundleDir, "label_map.json"))
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, featureCount))
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(labels))))
	if err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"features"},
		[]string{"logits"},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNXClassifier{
		session: session,
		labels:  labels,
		input:   input,
		output:  output,
	}, nil
}

// PredictLabel encodes the feature vector, runs inference, and returns
// the argmax label with its softmax probability.
func (c *ONNXClassifier) PredictLabel(f Features) (string, float64, error) {
	if c == nil || c.session == nil {
		return "", 0, errors.New("classifier not initialized")
	}

	statusIdx := float32(-1)
	for i, s := range statusEncoding {
		if s == f.OrderStatus {
			statusIdx = float32(i)
			break
		}
	}

	photo := float32(0)
	if f.HandoffPhoto {
		photo = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.input.GetData()
	data[0] = statusIdx
	data[1] = float32(f.RefundHistory30d)
	data[2] = photo
	data[3] = float32(f.CourierRating)

	if err := c.session.Run(); err != nil {
		return "", 0, fmt.Errorf("onnx run: %w", err)
	}

	logits := c.output.GetData()
	if len(logits) == 0 {
		return "", 0, errors.New("empty model output")
	}

	// Softmax with max-shift for numeric stability
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}
	var sum float64
	probs := make([]float64, len(logits))
	for i, l := range logits {
		probs[i] = math.Exp(float64(l - maxLogit))
		sum += probs[i]
	}

	bestIdx := 0
	for i := range probs {
		probs[i] /= sum
		if probs[i] > probs[bestIdx] {
			bestIdx = i
		}
	}
	if bestIdx >= len(c.labels) {
		return "", 0, fmt.Errorf("model output index %d has no label", bestIdx)
	}

	return c.labels[bestIdx], probs[bestIdx], nil
}

// Close releases the session and its tensors.
func (c *ONNXClassifier) Close() error {
	if c == nil || c.session == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session.Destroy()
	c.input.Destroy()
	c.output.Destroy()
	c.session = nil
	return nil
}

// loadLabels reads label_map.json, either an array or an index-keyed map.
func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return arr, nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	out := make([]string, len(m))
	for k, v := range m {
		idx, convErr := strconv.Atoi(k)
		if convErr != nil {
			return nil, fmt.Errorf("invalid label index %q: %w", k, convErr)
		}
		if idx < 0 || idx >= len(m) {
			return nil, fmt.Errorf("label index %d out of range", idx)
		}
		out[idx] = v
	}
	return out, nil
}

// resolveSharedLibraryPath locates the onnxruntime shared library. An
// explicit config path wins, then ONNXRUNTIME_SHARED_LIBRARY_PATH, then
// common install locations.
func resolveSharedLibraryPath(configured string) string {
	if configured != "" {
		return configured
	}
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	var names []string
	switch runtime.GOOS {
	case "darwin":
		names = []string{"libonnxruntime.dylib", "onnxruntime.dylib"}
	case "windows":
		names = []string{"onnxruntime.dll"}
	default:
		names = []string{"libonnxruntime.so", "onnxruntime.so"}
	}

	dirs := []string{"/usr/local/lib", "/usr/lib", "/opt/onnxruntime/lib", "."}
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
