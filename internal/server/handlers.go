package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tldwatch/internal/fallback"
	"tldwatch/internal/monitoring"
	"tldwatch/internal/notification"
	"tldwatch/internal/pricing"
	"tldwatch/internal/service"
)

func (s *Server) handlePriceChanges(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.data.GetPriceChanges(r.Context()))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("tld")
	if query == "" {
		respondError(w, http.StatusBadRequest, "query parameter tld is required")
		return
	}
	respondJSON(w, http.StatusOK, s.data.SearchTLD(r.Context(), query))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	tld := normalizeTLD(chi.URLParam(r, "tld"))
	respondJSON(w, http.StatusOK, s.data.GetPriceHistory(r.Context(), tld))
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	tld := normalizeTLD(chi.URLParam(r, "tld"))
	pc, ok := s.data.Lookup(tld)
	if !ok {
		respondError(w, http.StatusNotFound, "tld not found")
		return
	}
	respondJSON(w, http.StatusOK, pc.Analytics())
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("tlds")
	if raw == "" {
		respondError(w, http.StatusBadRequest, "query parameter tlds is required")
		return
	}
	tlds := strings.Split(raw, ",")
	for i := range tlds {
		tlds[i] = normalizeTLD(strings.TrimSpace(tlds[i]))
	}
	respondJSON(w, http.StatusOK, s.data.ComparePrices(r.Context(), tlds))
}

func (s *Server) handleTLDs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, fallback.TLDs())
}

type setAlertRequest struct {
	TLD string `json:"tld"`
	pricing.PriceAlert
}

func (s *Server) handleSetAlert(w http.ResponseWriter, r *http.Request) {
	var req setAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TLD == "" {
		respondError(w, http.StatusBadRequest, "tld is required")
		return
	}

	err := s.data.SetAlert(r.Context(), normalizeTLD(req.TLD), req.PriceAlert)
	switch {
	case errors.Is(err, service.ErrTLDNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case err != nil:
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		respondJSON(w, http.StatusCreated, map[string]string{"status": "created"})
	}
}

func (s *Server) handleCheckAlerts(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	s.data.CheckAlerts(r.Context(), userID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "checked"})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.notifier.PendingNotifications())
}

func (s *Server) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	s.notifier.ClearNotifications()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	respondJSON(w, http.StatusOK, s.notifier.GetPreferences(userID))
}

func (s *Server) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var prefs notification.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.notifier.SetPreferences(userID, prefs)
	respondJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.monitor.GetMetrics())
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	severity := monitoring.Severity(r.URL.Query().Get("severity"))
	respondJSON(w, http.StatusOK, s.monitor.RecentErrors(severity))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.monitor.HealthStatus()
	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, health)
}

type adminLoginRequest struct {
	Password string `json:"password"`
}

// handleAdminLogin is a plain string-equality check against the
// configured password. Not a real auth boundary.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if s.opts.AdminPassword == "" || req.Password != s.opts.AdminPassword {
		respondJSON(w, http.StatusUnauthorized, map[string]bool{"authenticated": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"authenticated": true})
}

// normalizeTLD ensures the dot prefix the cache keys expect.
func normalizeTLD(tld string) string {
	if tld == "" || strings.HasPrefix(tld, ".") {
		return tld
	}
	return "." + tld
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
