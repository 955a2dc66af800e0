package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/ironlog/internal/auth"
	"github.com/2beens/ironlog/internal/telemetry/metrics"
	"github.com/2beens/ironlog/internal/telemetry/tracing"
	"github.com/2beens/ironlog/pkg"
)

const defaultListLimit = 50

type sessionsRepo interface {
	Add(ctx context.Context, session WorkoutSession) error
	Get(ctx context.Context, userID, id string) (*WorkoutSession, error)
	GetActive(ctx context.Context, userID string) (*WorkoutSession, error)
	Modify(ctx context.Context, userID, id string, mutate func(*WorkoutSession) error) (*WorkoutSession, error)
	List(ctx context.Context, userID string, params ListParams) ([]WorkoutSession, error)
	Delete(ctx context.Context, userID, id string) error
}

// nameResolver looks up a display name for an id. Lookup failures are
// tolerated: snapshots stay null rather than failing the mutation.
type nameResolver interface {
	Name(ctx context.Context, userID, id string) (string, error)
}

type NewSessionRequest struct {
	RoutineID *string   `json:"routine_id"`
	Date      *pkg.Date `json:"date"`
	Notes     *string   `json:"notes"`
}

type UpdateSessionRequest struct {
	Notes   *string    `json:"notes"`
	EndTime *time.Time `json:"end_time"`
}

type AddExerciseRequest struct {
	ExerciseID    string  `json:"exercise_id"`
	RoutineItemID *string `json:"routine_item_id"`
	Notes         *string `json:"notes"`
}

type AddSetRequest struct {
	Reps   int      `json:"reps"`
	Weight float64  `json:"weight"`
	RPE    *float64 `json:"rpe"`
	Notes  *string  `json:"notes"`
}

type ListResponse struct {
	Sessions []WorkoutSession `json:"sessions"`
	Total    int              `json:"total"`
}

type Handler struct {
	repo          sessionsRepo
	exerciseNames nameResolver
	routineNames  nameResolver
	metrics       *metrics.Manager
	now           func() time.Time
}

func NewHandler(
	repo sessionsRepo,
	exerciseNames nameResolver,
	routineNames nameResolver,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		repo:          repo,
		exerciseNames: exerciseNames,
		routineNames:  routineNames,
		metrics:       metricsManager,
		now:           time.Now,
	}
}

func (handler *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.new")
	defer span.End()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req NewSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("new session, unmarshal json params: %s", err)
		http.Error(w, "start session failed", http.StatusBadRequest)
		return
	}

	active, err := handler.repo.GetActive(ctx, user.UID)
	if err != nil {
		log.Errorf("check active session for %s: %s", user.UID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if active != nil {
		http.Error(w, ErrActiveSessionExists.Error(), http.StatusBadRequest)
		return
	}

	now := handler.now()
	date := pkg.DateOf(now)
	if req.Date != nil {
		date = *req.Date
	}

	session := WorkoutSession{
		ID:                 uuid.NewString(),
		UserID:             user.UID,
		RoutineID:          req.RoutineID,
		Date:               date,
		StartTime:          now,
		EndTime:            nil,
		PerformedExercises: []PerformedExercise{},
		Notes:              req.Notes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if req.RoutineID != nil {
		routineName, err := handler.routineNames.Name(ctx, user.UID, *req.RoutineID)
		if err != nil {
			// snapshot stays null, the session still starts
			log.Tracef("resolve routine name [%s]: %s", *req.RoutineID, err)
		} else {
			session.RoutineName = &routineName
		}
	}

	if err := handler.repo.Add(ctx, session); err != nil {
		log.Errorf("failed to start session for %s: %s", user.UID, err)
		http.Error(w, "error, failed to start session", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterSessionsStarted.Inc()

	sessionJson, err := json.Marshal(session)
	if err != nil {
		log.Errorf("failed to marshal new session: %s", err)
		http.Error(w, "error, failed to start session", http.StatusInternalServerError)
		return
	}

	log.Debugf("new session started: [%s] %s", session.ID, session.Date)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, sessionJson, http.StatusCreated)
}

func (handler *Handler) HandleGetActive(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.getActive")
	defer span.End()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	session, err := handler.repo.GetActive(ctx, user.UID)
	if err != nil {
		log.Errorf("get active session for %s: %s", user.UID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// no active session is a regular outcome, not an error
	sessionJson, err := json.Marshal(session)
	if err != nil {
		log.Errorf("failed to marshal active session: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, sessionJson, http.StatusOK)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.get")
	defer span.End()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	session, err := handler.repo.Get(ctx, user.UID, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get session %s: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	sessionJson, err := json.Marshal(session)
	if err != nil {
		log.Errorf("failed to marshal session: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, sessionJson, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.update")
	defer span.End()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	var req UpdateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("update session, unmarshal json params: %s", err)
		http.Error(w, "update session failed", http.StatusBadRequest)
		return
	}

	if req.Notes == nil && req.EndTime == nil {
		http.Error(w, "no fields to update", http.StatusBadRequest)
		return
	}

	session, err := handler.repo.Modify(ctx, user.UID, id, func(session *WorkoutSession) error {
		if req.Notes != nil {
			session.Notes = req.Notes
		}
		if req.EndTime != nil {
			session.EndTime = req.EndTime
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to update session %s: %s", id, err)
		http.Error(w, "error, failed to update session", http.StatusInternalServerError)
		return
	}

	handler.writeSession(w, session, http.StatusOK)
}

func (handler *Handler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.finish")
	defer span.End()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	// re-finishing just moves end time forward, no guard on purpose
	session, err := handler.repo.Modify(ctx, user.UID, id, func(session *WorkoutSession) error {
		endTime := handler.now()
		session.EndTime = &endTime
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to finish session %s: %s", id, err)
		http.Error(w, "error, failed to finish session", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterSessionsFinished.Inc()

	log.Debugf("session finished: [%s]", session.ID)
	handler.writeSession(w, session, http.StatusOK)
}

func (handler *Handler) HandleAddExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.addExercise")
	defer span.End()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	var req AddExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("add session exercise, unmarshal json params: %s", err)
		http.Error(w, "add exercise failed", http.StatusBadRequest)
		return
	}
	if req.ExerciseID == "" {
		http.Error(w, "error, exercise id empty", http.StatusBadRequest)
		return
	}

	performed := PerformedExercise{
		ID:            uuid.NewString(),
		ExerciseID:    req.ExerciseID,
		RoutineItemID: req.RoutineItemID,
		AdHoc:         req.RoutineItemID == nil,
		Sets:          []PerformedSet{},
		Notes:         req.Notes,
	}

	// snapshot the catalog name now, later renames must not rewrite
	// session history; unknown exercise ids leave the name null
	if name, err := handler.exerciseNames.Name(ctx, user.UID, req.ExerciseID); err == nil {
		performed.ExerciseName = &name
	} else {
		log.Tracef("resolve exercise name [%s]: %s", req.ExerciseID, err)
	}

	var added *PerformedExercise
	_, err := handler.repo.Modify(ctx, user.UID, id, func(session *WorkoutSession) error {
		added = session.AddExercise(performed)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to add exercise to session %s: %s", id, err)
		http.Error(w, "error, failed to add exercise", http.StatusInternalServerError)
		return
	}

	performedJson, err := json.Marshal(added)
	if err != nil {
		log.Errorf("failed to marshal performed exercise: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	log.Debugf("exercise %s added to session %s", req.ExerciseID, id)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, performedJson, http.StatusCreated)
}

func (handler *Handler) HandleAddSet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.addSet")
	defer span.End()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	id := vars["id"]
	performedID := vars["performed_id"]
	if id == "" || performedID == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	var req AddSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("add session set, unmarshal json params: %s", err)
		http.Error(w, "add set failed", http.StatusBadRequest)
		return
	}

	set := PerformedSet{
		Reps:   req.Reps,
		Weight: req.Weight,
		RPE:    req.RPE,
		Notes:  req.Notes,
	}
	if err := set.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var added *PerformedSet
	_, err := handler.repo.Modify(ctx, user.UID, id, func(session *WorkoutSession) error {
		var addErr error
		added, addErr = session.AddSet(performedID, set)
		return addErr
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			http.Error(w, "session not found", http.StatusNotFound)
		case errors.Is(err, ErrPerformedExerciseNotFound):
			http.Error(w, ErrPerformedExerciseNotFound.Error(), http.StatusNotFound)
		default:
			log.Errorf("failed to add set to session %s: %s", id, err)
			http.Error(w, "error, failed to add set", http.StatusInternalServerError)
		}
		return
	}

	handler.metrics.CounterSetsLogged.Inc()

	setJson, err := json.Marshal(added)
	if err != nil {
		log.Errorf("failed to marshal performed set: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, setJson, http.StatusCreated)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.list")
	defer span.End()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	params := ListParams{Limit: defaultListLimit}
	if startDateStr := r.URL.Query().Get("start_date"); startDateStr != "" {
		startDate, err := pkg.ParseDate(startDateStr)
		if err != nil {
			http.Error(w, "failed to parse start_date param", http.StatusBadRequest)
			return
		}
		params.StartDate = &startDate
	}
	if endDateStr := r.URL.Query().Get("end_date"); endDateStr != "" {
		endDate, err := pkg.ParseDate(endDateStr)
		if err != nil {
			http.Error(w, "failed to parse end_date param", http.StatusBadRequest)
			return
		}
		params.EndDate = &endDate
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			http.Error(w, "invalid limit (has to be non-zero value)", http.StatusBadRequest)
			return
		}
		params.Limit = limit
	}

	sessions, err := handler.repo.List(ctx, user.UID, params)
	if err != nil {
		log.Errorf("list sessions: %s", err)
		http.Error(w, "failed to get sessions", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(ListResponse{
		Sessions: sessions,
		Total:    len(sessions),
	})
	if err != nil {
		log.Errorf("marshal sessions: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.delete")
	defer span.End()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(ctx, user.UID, id); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			log.Debugf("session %s not found", id)
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete session %s: %s", id, err)
		http.Error(w, "session not deleted", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (handler *Handler) writeSession(w http.ResponseWriter, session *WorkoutSession, statusCode int) {
	sessionJson, err := json.Marshal(session)
	if err != nil {
		log.Errorf("failed to marshal session: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, sessionJson, statusCode)
}
