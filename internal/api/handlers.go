// Package api exposes the HTTP surface consumed by the presentation layer.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/workouts/internal/domain"
	"example.com/workouts/internal/session"
)

const dateLayout = "2006-01-02"

// Config carries the cookie parameters handlers need to build a per-request
// token cache.
type Config struct {
	CookiePrefix string
	CookieSecure bool
	CookieMaxAge time.Duration
}

// Handler coordinates HTTP requests with the session manager and record
// service.
type Handler struct {
	sessions *session.Manager
	records  *domain.Service
	codec    *session.Codec
	cfg      Config
	log      *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(sessions *session.Manager, records *domain.Service, codec *session.Codec, cfg Config, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{sessions: sessions, records: records, codec: codec, cfg: cfg, log: log}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/auth/register", h.register)
	mux.HandleFunc("/v1/auth/login", h.login)
	mux.HandleFunc("/v1/auth/logout", h.logout)
	mux.HandleFunc("/v1/session", h.currentSession)
	mux.HandleFunc("/v1/workouts", h.workouts)
	mux.HandleFunc("/v1/workouts/", h.workoutByID)
	mux.HandleFunc("/healthz", healthz)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// cache builds the encrypted cookie-backed token cache for this request.
func (h *Handler) cache(w http.ResponseWriter, r *http.Request) *session.CookieCache {
	return session.NewCookieCache(h.codec, h.cfg.CookiePrefix, h.cfg.CookieSecure, int(h.cfg.CookieMaxAge.Seconds()), w, r)
}

// CredentialsRequest is the payload for login and register.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate ensures request correctness.
func (r CredentialsRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return errors.New("email is not valid")
	}
	if r.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// IdentityView is the authenticated principal as returned to the client.
type IdentityView struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// RegisterResponse describes the outcome of a registration.
type RegisterResponse struct {
	Identity             *IdentityView `json:"identity,omitempty"`
	ConfirmationRequired bool          `json:"confirmation_required"`
}

// LogoutResponse reports whether the provider-side sign-out also succeeded.
// The local session is cleared either way.
type LogoutResponse struct {
	SignedOut       bool `json:"signed_out"`
	ProviderSignOut bool `json:"provider_sign_out"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	outcome, err := h.sessions.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	if outcome.ConfirmationRequired {
		writeJSON(w, http.StatusAccepted, RegisterResponse{ConfirmationRequired: true})
		return
	}

	if err := h.sessions.Persist(h.cache(w, r), outcome.Session.Tokens); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, RegisterResponse{
		Identity: &IdentityView{UserID: outcome.Session.Identity.ID, Email: outcome.Session.Identity.Email},
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	sess, err := h.sessions.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	if err := h.sessions.Persist(h.cache(w, r), sess.Tokens); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, IdentityView{UserID: sess.Identity.ID, Email: sess.Identity.Email})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	result := h.sessions.Invalidate(r.Context(), h.cache(w, r))
	writeJSON(w, http.StatusOK, LogoutResponse{SignedOut: true, ProviderSignOut: result.Clean()})
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	identity := h.sessions.Restore(r.Context(), h.cache(w, r))
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no active session")
		return
	}
	writeJSON(w, http.StatusOK, IdentityView{UserID: identity.ID, Email: identity.Email})
}

// ExerciseView is one exercise line in API payloads.
type ExerciseView struct {
	Exercise string  `json:"exercise"`
	Sets     int     `json:"sets"`
	Reps     int     `json:"reps"`
	Weight   float64 `json:"weight"`
}

// CreateWorkoutRequest is the payload for POST /v1/workouts.
type CreateWorkoutRequest struct {
	Date      string         `json:"date"`
	Notes     string         `json:"notes"`
	Exercises []ExerciseView `json:"exercises"`
}

// CreateWorkoutResponse carries the store-assigned id.
type CreateWorkoutResponse struct {
	WorkoutID string `json:"workout_id"`
}

// WorkoutView is one record in list responses.
type WorkoutView struct {
	WorkoutID string         `json:"workout_id"`
	Date      string         `json:"date"`
	Notes     string         `json:"notes,omitempty"`
	Exercises []ExerciseView `json:"exercises"`
	CreatedAt time.Time      `json:"created_at"`
}

// ListWorkoutsResponse packages list results.
type ListWorkoutsResponse struct {
	Items []WorkoutView `json:"items"`
}

func (h *Handler) workouts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createWorkout(w, r)
	case http.MethodGet:
		h.listWorkouts(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) workoutByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/workouts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing or malformed workout id")
		return
	}

	switch r.Method {
	case http.MethodDelete:
		h.deleteWorkout(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createWorkout(w http.ResponseWriter, r *http.Request) {
	identity := h.sessions.Restore(r.Context(), h.cache(w, r))
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no active session")
		return
	}

	var req CreateWorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "date must be a valid YYYY-MM-DD date")
		return
	}

	exercises := make([]domain.ExerciseEntry, 0, len(req.Exercises))
	for _, entry := range req.Exercises {
		exercises = append(exercises, domain.ExerciseEntry(entry))
	}

	id, err := h.records.CreateWorkout(r.Context(), identity.ID, date, req.Notes, exercises)
	if err != nil {
		writeRecordError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateWorkoutResponse{WorkoutID: id})
}

func (h *Handler) listWorkouts(w http.ResponseWriter, r *http.Request) {
	identity := h.sessions.Restore(r.Context(), h.cache(w, r))
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no active session")
		return
	}

	records, err := h.records.ListWorkouts(r.Context(), identity.ID)
	if err != nil {
		writeRecordError(w, err)
		return
	}

	items := make([]WorkoutView, 0, len(records))
	for _, record := range records {
		items = append(items, toWorkoutView(record))
	}
	writeJSON(w, http.StatusOK, ListWorkoutsResponse{Items: items})
}

func (h *Handler) deleteWorkout(w http.ResponseWriter, r *http.Request, id string) {
	identity := h.sessions.Restore(r.Context(), h.cache(w, r))
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no active session")
		return
	}

	if err := h.records.DeleteWorkout(r.Context(), identity.ID, id); err != nil {
		writeRecordError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toWorkoutView(record domain.WorkoutRecord) WorkoutView {
	exercises := make([]ExerciseView, 0, len(record.Exercises))
	for _, entry := range record.Exercises {
		exercises = append(exercises, ExerciseView(entry))
	}
	return WorkoutView{
		WorkoutID: record.ID,
		Date:      record.Date.Format(dateLayout),
		Notes:     record.Notes,
		Exercises: exercises,
		CreatedAt: record.CreatedAt,
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
	case errors.Is(err, domain.ErrUnconfirmedAccount):
		writeError(w, http.StatusForbidden, "unconfirmed_account", "confirm your email before logging in")
	case errors.Is(err, domain.ErrDuplicateAccount):
		writeError(w, http.StatusConflict, "duplicate_account", "an account with this email already exists")
	case errors.Is(err, domain.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "weak_password", err.Error())
	case errors.Is(err, domain.ErrProviderUnavailable):
		writeError(w, http.StatusBadGateway, "provider_unavailable", "credential provider is unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeRecordError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "no active session")
	case errors.Is(err, domain.ErrInvalidRecord):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, http.StatusBadGateway, "store_unavailable", "record store is unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
