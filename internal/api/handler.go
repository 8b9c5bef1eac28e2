package api

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-delivery/kite/internal/domain"
	"github.com/opensource-delivery/kite/internal/engine"
	"github.com/opensource-delivery/kite/internal/history"
	"github.com/opensource-delivery/kite/internal/intel"
	"github.com/opensource-delivery/kite/internal/mailer"
	"github.com/opensource-delivery/kite/internal/policy"
)

// maxBatchRows caps CSV batch classification per request.
const maxBatchRows = 500

// Handler holds dependencies for API handlers.
type Handler struct {
	repo         domain.Repository
	cache        domain.Cache
	bus          domain.EventBus
	engine       *engine.Orchestrator
	policyEngine *policy.Engine
	analyzer     *intel.Analyzer
	profiler     *history.Profiler
	mailer       *mailer.Mailer
	rulesPath    string
	version      string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, orchestrator *engine.Orchestrator, policyEngine *policy.Engine, analyzer *intel.Analyzer, profiler *history.Profiler, m *mailer.Mailer, rulesPath string, version string) *Handler {
	return &Handler{
		repo:         repo,
		cache:        cache,
		bus:          bus,
		engine:       orchestrator,
		policyEngine: policyEngine,
		analyzer:     analyzer,
		profiler:     profiler,
		mailer:       m,
		rulesPath:    rulesPath,
		version:      version,
	}
}

// Classify handles POST /classify requests.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.ComplaintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if strings.TrimSpace(req.ComplaintText) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "complaint_text is required",
		})
		return
	}

	c := req.ToCase()
	resp := h.engine.Classify(ctx, c)

	if req.Email != "" && h.mailer != nil {
		resp.EmailSent = h.mailer.SendDecision(ctx, req.Email, resp)
	}

	if h.repo != nil {
		if err := h.repo.LogComplaint(ctx, resp, c); err != nil {
			slog.Error("failed to log complaint", "complaint_id", resp.ComplaintID, "error", err)
			// Classification already succeeded; the caller still gets it.
		}
	}

	h.publishDecision(r, resp)

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) publishDecision(r *http.Request, resp *domain.Response) {
	if h.bus == nil {
		return
	}
	ctx := r.Context()

	payload, _ := json.Marshal(resp)
	if err := h.bus.Publish(ctx, domain.TopicComplaintDecision, payload); err != nil {
		slog.Error("failed to publish decision", "complaint_id", resp.ComplaintID, "error", err)
	}

	if resp.Severity == domain.SeverityCritical || resp.FraudRisk == domain.FraudLabelHighRisk {
		if err := h.bus.Publish(ctx, domain.TopicComplaintAlert, payload); err != nil {
			slog.Error("failed to publish alert", "complaint_id", resp.ComplaintID, "error", err)
		}
	}
}

// BatchClassify handles POST /batch/classify with a CSV payload.
// Accepts a multipart "file" field or a raw CSV body. The first row must
// be a header naming at least complaint_text.
func (h *Handler) BatchClassify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var src io.Reader = r.Body
	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		src = file
	}

	reader := csv.NewReader(src)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CSV: missing header row",
		})
		return
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["complaint_text"]; !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "CSV header must include complaint_text",
		})
		return
	}

	var results []*domain.Response
	var skipped int

	for len(results) < maxBatchRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		req := rowToRequest(columns, record)
		if strings.TrimSpace(req.ComplaintText) == "" {
			skipped++
			continue
		}

		c := req.ToCase()
		resp := h.engine.Classify(ctx, c)

		if h.repo != nil {
			if err := h.repo.LogComplaint(ctx, resp, c); err != nil {
				slog.Error("failed to log complaint", "complaint_id", resp.ComplaintID, "error", err)
			}
		}
		results = append(results, resp)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
		"skipped": skipped,
	})
}

func rowToRequest(columns map[string]int, record []string) domain.ComplaintRequest {
	get := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	req := domain.ComplaintRequest{
		OrderID:       get("order_id"),
		CustomerID:    get("customer_id"),
		Email:         get("email"),
		ComplaintText: get("complaint_text"),
		IssueType:     get("issue_type"),
	}

	if v := get("handoff_photo"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			req.HandoffPhoto = &b
		}
	}
	if v := get("refund_history_30d"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			req.RefundHistory30d = &n
		}
	}
	if v := get("courier_rating"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			req.CourierRating = &f
		}
	}
	if v := get("order_value"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			req.OrderValue = &f
		}
	}
	return req
}

// RewriteRequest is the request body for POST /rewrite.
type RewriteRequest struct {
	Text string `json:"text"`
}

// Rewrite handles POST /rewrite: reformulates a raw complaint into a
// professional version for agent-assisted replies.
func (h *Handler) Rewrite(w http.ResponseWriter, r *http.Request) {
	var req RewriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "text is required",
		})
		return
	}

	writeJSON(w, http.StatusOK, h.analyzer.Rewrite(req.Text))
}

// GetComplaint retrieves a stored classification by complaint ID.
func (h *Handler) GetComplaint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	complaintID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	resp, err := h.repo.GetComplaint(ctx, complaintID)
	if err != nil {
		slog.Error("failed to get complaint", "id", complaintID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "complaint not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListComplaints returns a filtered page of the audit log.
func (h *Handler) ListComplaints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	filter := domain.ComplaintFilter{
		CustomerID: r.URL.Query().Get("customer_id"),
		Decision:   r.URL.Query().Get("decision"),
		Severity:   r.URL.Query().Get("severity"),
		Limit:      queryInt(r, "limit", 50),
		Offset:     queryInt(r, "offset", 0),
	}

	records, total, err := h.repo.ListComplaints(ctx, filter)
	if err != nil {
		slog.Error("failed to list complaints", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list complaints",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"complaints": records,
		"count":      len(records),
		"total":      total,
	})
}

// GetCustomer returns the derived profile for one customer.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	summary := h.profiler.Summary(r.Context(), customerID)
	writeJSON(w, http.StatusOK, summary)
}

// TopCustomers returns the repeat-complainer leaderboard.
func (h *Handler) TopCustomers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	days := queryInt(r, "days", 30)
	limit := queryInt(r, "limit", 10)

	top, err := h.repo.TopComplainers(ctx, days, limit)
	if err != nil {
		slog.Error("failed to list top complainers", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list top complainers",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"customers": top,
		"count":     len(top),
		"days":      days,
	})
}

// SubmitFeedback records an agent correction of a decision.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var fb domain.Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if fb.ComplaintID == "" || fb.CorrectedDecision == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "complaint_id and corrected_decision are required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.SaveFeedback(ctx, &fb); err != nil {
		slog.Error("failed to save feedback", "complaint_id", fb.ComplaintID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save feedback",
		})
		return
	}

	slog.Info("feedback recorded",
		"complaint_id", fb.ComplaintID,
		"original", fb.OriginalDecision,
		"corrected", fb.CorrectedDecision,
	)
	writeJSON(w, http.StatusCreated, fb)
}

// ListFeedback returns recent agent corrections.
func (h *Handler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	feedback, err := h.repo.ListFeedback(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		slog.Error("failed to list feedback", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list feedback",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"feedback": feedback,
		"count":    len(feedback),
	})
}

// AnalyticsOverview returns the dashboard aggregates.
func (h *Handler) AnalyticsOverview(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	days := queryInt(r, "days", 30)
	stats, err := h.repo.OverviewStats(r.Context(), days)
	if err != nil {
		slog.Error("failed to compute overview stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// AnalyticsRootCauses returns decision aggregates per detected root cause.
func (h *Handler) AnalyticsRootCauses(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	days := queryInt(r, "days", 30)
	stats, err := h.repo.RootCauseStats(r.Context(), days)
	if err != nil {
		slog.Error("failed to compute root cause stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"root_causes": stats,
		"count":       len(stats),
		"days":        days,
	})
}

// ListRules returns the rules currently loaded in the policy engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules := h.policyEngine.Rules()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// CreateRule persists a new policy rule. The engine picks it up on the
// next POST /rules/reload.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rule domain.PolicyRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if rule.ID == "" || rule.Decision == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id and decision are required",
		})
		return
	}

	// Round-trip through the parser to reject unsupported shapes early.
	raw, _ := json.Marshal([]*domain.PolicyRule{&rule})
	if _, err := policy.ParseRules(raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule: " + err.Error(),
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.SaveRule(ctx, &rule); err != nil {
		slog.Error("failed to save rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("rule created", "id", rule.ID, "decision", rule.Decision)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads policy rules from the rules file plus any rules
// persisted through the API. This enables hot-reloading without restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	fileRules, err := policy.LoadRulesFile(h.rulesPath)
	if err != nil {
		slog.Error("failed to load rules file", "path", h.rulesPath, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules file: " + err.Error(),
		})
		return
	}

	var dbRules []*domain.PolicyRule
	if h.repo != nil {
		dbRules, err = h.repo.ListRules(ctx)
		if err != nil {
			slog.Error("failed to list rules from database", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to load rules from database",
			})
			return
		}
	}

	rules := append(fileRules, dbRules...)
	h.policyEngine.ReloadRules(rules)

	slog.Info("rules reloaded", "file_count", len(fileRules), "db_count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   h.policyEngine.RulesCount(),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check bus health
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  status,
		"version": h.version,
		"rules":   h.policyEngine.RulesCount(),
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
