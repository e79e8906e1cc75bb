// Package api exposes the HTTP handlers for the cycletrack backend.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"example.com/cycletrack/internal/auth"
	"example.com/cycletrack/internal/domain"
	"example.com/cycletrack/internal/observability"
	"example.com/cycletrack/internal/token"
)

const dateLayout = "2006-01-02"

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	logger  *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes wires endpoints to the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/auth/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/api/daily-stats", h.dailyStats).Methods(http.MethodGet)
	r.HandleFunc("/api/hr_data", h.heartRates).Methods(http.MethodGet)
	r.HandleFunc("/api/menstrual_phases", h.phases).Methods(http.MethodGet)
	r.HandleFunc("/api/activities", h.activities).Methods(http.MethodGet)
	r.HandleFunc("/api/current-phase", h.currentPhase).Methods(http.MethodGet)
	r.HandleFunc("/api/ingestion/jobs", h.ingestionJobs).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// CredentialsRequest is the payload for register, login and daily-stats.
type CredentialsRequest struct {
	GarminEmail    string `json:"garminEmail"`
	GarminPassword string `json:"garminPassword"`
	UserID         string `json:"user_id,omitempty"`
}

// Validate ensures both credential fields are present.
func (r CredentialsRequest) Validate() error {
	if strings.TrimSpace(r.GarminEmail) == "" {
		return errors.New("garminEmail is required")
	}
	if strings.TrimSpace(r.GarminPassword) == "" {
		return errors.New("garminPassword is required")
	}
	return nil
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	Token   string `json:"token"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.service.Register(r.Context(), req.GarminEmail, req.GarminPassword)
	if err != nil {
		h.logger.Error("registration failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	observability.RecordRegistration()
	writeJSON(w, http.StatusOK, SessionResponse{
		Token:   session.Token,
		UserID:  session.UserID,
		Message: "registration complete, data collection started",
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.service.Login(r.Context(), req.GarminEmail, req.GarminPassword)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Token:   session.Token,
		UserID:  session.UserID,
		Message: "login successful",
	})
}

// dailyStats runs the blocking daily refresh. The collector's outcome is
// logged, never reflected in the response.
func (h *Handler) dailyStats(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	h.logger.Info("daily refresh requested", zap.String("user_id", req.UserID))
	h.service.RefreshDailyStats(r.Context(), req.GarminEmail, req.GarminPassword, req.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "daily stats refresh completed"})
}

// HeartRateView is the wire shape of one heart-rate sample.
type HeartRateView struct {
	ID        int64    `json:"id"`
	UserID    string   `json:"user_id"`
	Date      string   `json:"date"`
	HRVStatus *float64 `json:"hrv_status"`
	RHR       *int     `json:"rhr"`
}

func (h *Handler) heartRates(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user_id parameter")
		return
	}

	samples, err := h.service.HeartRates(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]HeartRateView, 0, len(samples))
	for _, s := range samples {
		views = append(views, HeartRateView{
			ID:        s.ID,
			UserID:    s.UserID,
			Date:      s.Date.Format(dateLayout),
			HRVStatus: s.HRVStatus,
			RHR:       s.RestingHR,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// PhaseView is the wire shape of one phase prediction.
type PhaseView struct {
	ID             int64  `json:"id"`
	UserID         string `json:"user_id"`
	StartDate      string `json:"start_date"`
	CycleDay       int    `json:"cycle_day"`
	PredictedPhase string `json:"predicted_phase"`
}

func (h *Handler) phases(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user_id parameter")
		return
	}

	predictions, err := h.service.Phases(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]PhaseView, 0, len(predictions))
	for _, p := range predictions {
		views = append(views, PhaseView{
			ID:             p.ID,
			UserID:         p.UserID,
			StartDate:      p.StartDate.Format(dateLayout),
			CycleDay:       p.CycleDay,
			PredictedPhase: p.PredictedPhase,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// ActivityView is the wire shape of one activity.
type ActivityView struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	GarminID      int64     `json:"activityid"`
	Name          string    `json:"activity_name"`
	Type          string    `json:"activity_type"`
	StartTime     time.Time `json:"start_time"`
	Duration      float64   `json:"duration"`
	Calories      float64   `json:"calories"`
	AverageHR     *float64  `json:"average_hr"`
	MaxHR         *float64  `json:"max_hr"`
	Distance      *float64  `json:"distance"`
	AverageSpeed  *float64  `json:"average_speed"`
	ElevationGain *float64  `json:"elevation_gain"`
	ElevationLoss *float64  `json:"elevation_loss"`
	TotalSets     *int      `json:"total_sets"`
	TotalReps     *int      `json:"total_reps"`
}

// activities resolves the caller's identity from the bearer token; the
// query parameter is ignored and the token's subject must exist.
func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	user, err := h.service.UserBySubject(r.Context(), subject)
	if err != nil {
		if errors.Is(err, token.ErrUnknownSubject) {
			writeError(w, http.StatusForbidden, "unknown subject")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	activities, err := h.service.Activities(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		views = append(views, ActivityView{
			ID:            a.ID,
			UserID:        a.UserID,
			GarminID:      a.GarminID,
			Name:          a.Name,
			Type:          a.Type,
			StartTime:     a.StartTime,
			Duration:      a.Duration,
			Calories:      a.Calories,
			AverageHR:     a.AverageHR,
			MaxHR:         a.MaxHR,
			Distance:      a.Distance,
			AverageSpeed:  a.AverageSpeed,
			ElevationGain: a.ElevationGain,
			ElevationLoss: a.ElevationLoss,
			TotalSets:     a.TotalSets,
			TotalReps:     a.TotalReps,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// PhaseStatusView is the wire shape of the current-phase card.
type PhaseStatusView struct {
	Phase      string  `json:"phase"`
	CycleDay   int     `json:"cycle_day"`
	StartDate  string  `json:"start_date"`
	Confidence float64 `json:"confidence"`
	Color      string  `json:"color"`
}

func (h *Handler) currentPhase(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user_id parameter")
		return
	}

	status, err := h.service.CurrentPhase(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNoPrediction) {
			writeError(w, http.StatusNotFound, "no phase prediction recorded")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PhaseStatusView{
		Phase:      status.Phase,
		CycleDay:   status.CycleDay,
		StartDate:  status.StartDate.Format(dateLayout),
		Confidence: status.Confidence,
		Color:      status.Color,
	})
}

// JobView is the wire shape of one ingestion job.
type JobView struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	Kind       string  `json:"kind"`
	State      string  `json:"state"`
	Error      *string `json:"error,omitempty"`
	StartedAt  string  `json:"started_at"`
	FinishedAt *string `json:"finished_at,omitempty"`
}

func (h *Handler) ingestionJobs(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user_id parameter")
		return
	}

	jobs, err := h.service.IngestionJobs(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]JobView, 0, len(jobs))
	for _, j := range jobs {
		view := JobView{
			ID:        j.ID,
			UserID:    j.UserID,
			Kind:      string(j.Kind),
			State:     string(j.State),
			Error:     j.Error,
			StartedAt: j.StartedAt.Format(time.RFC3339),
		}
		if j.FinishedAt != nil {
			finished := j.FinishedAt.Format(time.RFC3339)
			view.FinishedAt = &finished
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"error": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
