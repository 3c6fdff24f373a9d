package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/threatengine/onboarding/internal/engine"
	"github.com/threatengine/onboarding/internal/models"
	"github.com/threatengine/onboarding/internal/repo"
)

// ScanHandler serves local scan history and proxies scan queries to the
// provider engines.
type ScanHandler struct {
	Results *repo.ScanResultRepo
	Engine  *engine.Client
	Log     *slog.Logger
}

// ListAccountScans returns an account's scan history (query: limit, offset).
func (h *ScanHandler) ListAccountScans(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")
	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	list, err := h.Results.ListByAccount(r.Context(), accountID, limit, offset)
	if err != nil {
		h.Log.Error("list scan results", "account_id", accountID, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []models.ScanResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": list})
}

// ScanStatus proxies the engine's status view of a scan.
func (h *ScanHandler) ScanStatus(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, func(provider, scanID string) (map[string]any, error) {
		return h.Engine.ScanStatus(r.Context(), provider, scanID)
	})
}

// ScanProgress proxies the engine's progress counters.
func (h *ScanHandler) ScanProgress(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, func(provider, scanID string) (map[string]any, error) {
		return h.Engine.ScanProgress(r.Context(), provider, scanID)
	})
}

// ScanResults proxies one page of detailed check results (query: page, page_size).
func (h *ScanHandler) ScanResults(w http.ResponseWriter, r *http.Request) {
	page := 1
	pageSize := 100
	if p := r.URL.Query().Get("page"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			page = n
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if n, err := strconv.Atoi(ps); err == nil && n > 0 && n <= 500 {
			pageSize = n
		}
	}
	h.proxy(w, r, func(provider, scanID string) (map[string]any, error) {
		return h.Engine.ScanResults(r.Context(), provider, scanID, page, pageSize)
	})
}

// ScanSummary proxies the engine's per-service statistics.
func (h *ScanHandler) ScanSummary(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, func(provider, scanID string) (map[string]any, error) {
		return h.Engine.ScanSummary(r.Context(), provider, scanID)
	})
}

// CancelScan asks the engine to cancel a running scan.
func (h *ScanHandler) CancelScan(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, func(provider, scanID string) (map[string]any, error) {
		return h.Engine.CancelScan(r.Context(), provider, scanID)
	})
}

// ListEngineScans proxies the engine-side scan list (query: status, identifier,
// limit, offset).
func (h *ScanHandler) ListEngineScans(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	out, err := h.Engine.ListScans(r.Context(), provider,
		r.URL.Query().Get("status"), r.URL.Query().Get("identifier"), limit, offset)
	if err != nil {
		h.writeEngineError(w, provider, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// EngineMetrics proxies the engine's own metrics document.
func (h *ScanHandler) EngineMetrics(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	out, err := h.Engine.EngineMetrics(r.Context(), provider)
	if err != nil {
		h.writeEngineError(w, provider, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ScanHandler) proxy(w http.ResponseWriter, r *http.Request, call func(provider, scanID string) (map[string]any, error)) {
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	scanID := chi.URLParam(r, "scan_id")
	out, err := call(provider, scanID)
	if err != nil {
		h.writeEngineError(w, provider, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// writeEngineError translates engine client errors: unknown providers are the
// caller's fault, engine 404s pass through, everything else is a bad gateway.
func (h *ScanHandler) writeEngineError(w http.ResponseWriter, provider string, err error) {
	if errors.Is(err, engine.ErrUnsupportedProvider) {
		JSONError(w, "provider "+provider+" not supported", http.StatusNotFound)
		return
	}
	var engineErr *engine.Error
	if errors.As(err, &engineErr) && engineErr.StatusCode == http.StatusNotFound {
		JSONError(w, "scan not found", http.StatusNotFound)
		return
	}
	h.Log.Error("engine request failed", "provider", provider, "error", err)
	JSONError(w, "engine request failed", http.StatusBadGateway)
}
