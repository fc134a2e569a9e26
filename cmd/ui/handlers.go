package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"go.uber.org/zap"

	"trade-journal-go/internal/auth"
	"trade-journal-go/internal/journal"
	"trade-journal-go/internal/metrics"
	"trade-journal-go/internal/models"
)

const dateLayout = "2006-01-02"

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log       *zap.Logger
	store     *journal.Store
	session   *auth.Session
	decoder   *schema.Decoder
	startTime time.Time
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, store *journal.Store, session *auth.Session) *APIHandler {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &APIHandler{
		log:       log,
		store:     store,
		session:   session,
		decoder:   decoder,
		startTime: time.Now(),
	}
}

// Routes wires every endpoint onto a router.
func (h *APIHandler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	api.HandleFunc("/status", h.StatusHandler).Methods(http.MethodGet)

	api.HandleFunc("/auth/login", h.LoginHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", h.RegisterHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.LogoutHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", h.MeHandler).Methods(http.MethodGet)

	api.HandleFunc("/trades", h.TradesHandler).Methods(http.MethodGet)
	api.HandleFunc("/trades", h.AddTradeHandler).Methods(http.MethodPost)
	api.HandleFunc("/trades/{id}", h.GetTradeHandler).Methods(http.MethodGet)
	api.HandleFunc("/trades/{id}", h.UpdateTradeHandler).Methods(http.MethodPatch)
	api.HandleFunc("/trades/{id}", h.DeleteTradeHandler).Methods(http.MethodDelete)
	api.HandleFunc("/trades/{id}/metrics", h.TradeMetricsHandler).Methods(http.MethodGet)

	api.HandleFunc("/summary/{date}", h.DailySummaryHandler).Methods(http.MethodGet)

	api.HandleFunc("/calendar/years", h.YearsHandler).Methods(http.MethodGet)
	api.HandleFunc("/calendar/{year:[0-9]+}/months", h.MonthsHandler).Methods(http.MethodGet)
	api.HandleFunc("/calendar/{year:[0-9]+}/{month:[0-9]+}/days", h.DaysHandler).Methods(http.MethodGet)

	api.HandleFunc("/persist", h.PersistHandler).Methods(http.MethodPost)
	api.HandleFunc("/export.csv", h.ExportHandler).Methods(http.MethodGet)

	return r
}

func (h *APIHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.Debug("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}

// mutationResponse reports a change that may not have reached storage.
type mutationResponse struct {
	Trade     *models.Trade `json:"trade,omitempty"`
	Persisted bool          `json:"persisted"`
	Warning   string        `json:"warning,omitempty"`
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to write response", zap.Error(err))
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, journal.ErrInvalidTrade),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrPasswordMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, journal.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	}
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", zap.Error(err))
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *APIHandler) badRequest(w http.ResponseWriter, msg string) {
	h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// writeMutation answers a mutation. A persistence failure is reported, not treated as a failed request.
func (h *APIHandler) writeMutation(w http.ResponseWriter, status int, trade *models.Trade, err error) {
	if err != nil && !errors.Is(err, journal.ErrPersist) {
		h.writeError(w, err)
		return
	}
	resp := mutationResponse{Trade: trade, Persisted: err == nil}
	if err != nil {
		resp.Warning = err.Error()
	}
	h.writeJSON(w, status, resp)
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// HealthHandler reports liveness.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK\n"))
}

// StatusHandler reports uptime, trade count, unsaved changes and the signed-in user.
func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	status := struct {
		StartTime string       `json:"start_time"`
		Uptime    string       `json:"uptime"`
		Trades    int          `json:"trades"`
		Unsaved   bool         `json:"unsaved"`
		User      *models.User `json:"user"`
	}{
		StartTime: h.startTime.Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).String(),
		Trades:    h.store.Len(),
		Unsaved:   h.store.Dirty(),
		User:      h.session.Current(),
	}
	h.writeJSON(w, http.StatusOK, status)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid login body")
		return
	}
	user, err := h.session.Login(r.Context(), req.Email, req.Password)
	if err != nil && user.ID == "" {
		h.writeError(w, err)
		return
	}
	if err != nil {
		h.log.Warn("Signed in without storing the user", zap.Error(err))
	}
	h.writeJSON(w, http.StatusOK, user)
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid register body")
		return
	}
	user, err := h.session.Register(r.Context(), req.Name, req.Email, req.Password, req.ConfirmPassword)
	if err != nil && user.ID == "" {
		h.writeError(w, err)
		return
	}
	if err != nil {
		h.log.Warn("Registered without storing the user", zap.Error(err))
	}
	h.writeJSON(w, http.StatusCreated, user)
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	user := h.session.Current()
	if user == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// tradesQuery is the query string of GET /api/trades.
type tradesQuery struct {
	Date string `schema:"date"`
}

// TradesHandler returns every trade, or the trades of one day when ?date= is set.
func (h *APIHandler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	var q tradesQuery
	if err := h.decoder.Decode(&q, r.URL.Query()); err != nil {
		h.badRequest(w, "invalid query: "+err.Error())
		return
	}

	trades := h.store.All()
	if q.Date != "" {
		date, err := parseDate(q.Date)
		if err != nil {
			h.badRequest(w, "date must be YYYY-MM-DD")
			return
		}
		trades = h.store.TradesOnDate(date)
	}
	if trades == nil {
		trades = []models.Trade{}
	}
	h.writeJSON(w, http.StatusOK, trades)
}

func (h *APIHandler) AddTradeHandler(w http.ResponseWriter, r *http.Request) {
	var in models.TradeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid trade body: "+err.Error())
		return
	}

	trade, err := h.store.Add(in)
	h.writeMutation(w, http.StatusCreated, &trade, err)
}

func (h *APIHandler) GetTradeHandler(w http.ResponseWriter, r *http.Request) {
	trade, err := h.store.Get(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, trade)
}

func (h *APIHandler) UpdateTradeHandler(w http.ResponseWriter, r *http.Request) {
	var patch models.TradePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.badRequest(w, "invalid patch body: "+err.Error())
		return
	}

	trade, err := h.store.Update(mux.Vars(r)["id"], patch)
	h.writeMutation(w, http.StatusOK, &trade, err)
}

func (h *APIHandler) DeleteTradeHandler(w http.ResponseWriter, r *http.Request) {
	err := h.store.Delete(mux.Vars(r)["id"])
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeMutation(w, http.StatusOK, nil, err)
}

func (h *APIHandler) TradeMetricsHandler(w http.ResponseWriter, r *http.Request) {
	trade, err := h.store.Get(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, metrics.ForTrade(trade))
}

// DailySummaryHandler answers null when the day has no trades.
func (h *APIHandler) DailySummaryHandler(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(mux.Vars(r)["date"])
	if err != nil {
		h.badRequest(w, "date must be YYYY-MM-DD")
		return
	}
	h.writeJSON(w, http.StatusOK, h.store.DailySummary(date))
}

func (h *APIHandler) YearsHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.YearsWithTrades())
}

func (h *APIHandler) MonthsHandler(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(mux.Vars(r)["year"])
	if err != nil {
		h.badRequest(w, "invalid year")
		return
	}
	h.writeJSON(w, http.StatusOK, h.store.MonthsWithTrades(year))
}

func (h *APIHandler) DaysHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	year, err := strconv.Atoi(vars["year"])
	if err != nil {
		h.badRequest(w, "invalid year")
		return
	}
	month, err := strconv.Atoi(vars["month"])
	if err != nil || month < 1 || month > 12 {
		h.badRequest(w, "month must be between 1 and 12")
		return
	}
	h.writeJSON(w, http.StatusOK, h.store.DaysWithTrades(year, time.Month(month)))
}

func (h *APIHandler) PersistHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Persist(); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="trades.csv"`)
	if err := journal.WriteCSV(w, h.store.All()); err != nil {
		h.log.Error("Failed to export trades", zap.Error(err))
	}
}
