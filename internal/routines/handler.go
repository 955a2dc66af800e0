package routines

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
	"github.com/2beens/ironlog/internal/telemetry/tracing"
	"github.com/2beens/ironlog/pkg"
)

type routinesRepo interface {
	List(ctx context.Context, userID string) ([]Routine, error)
	Add(ctx context.Context, routine Routine) error
	Get(ctx context.Context, userID, id string) (*Routine, error)
	Save(ctx context.Context, routine Routine) error
	Delete(ctx context.Context, userID, id string) error
}

type NewRoutineRequest struct {
	Name        string      `json:"name"`
	Description *string     `json:"description"`
	StartDate   *pkg.Date   `json:"start_date"`
	EndDate     *pkg.Date   `json:"end_date"`
	Provisions  []Provision `json:"provisions"`
}

type UpdateRoutineRequest struct {
	Name        *string      `json:"name"`
	Description *string      `json:"description"`
	StartDate   *pkg.Date    `json:"start_date"`
	EndDate     *pkg.Date    `json:"end_date"`
	Provisions  *[]Provision `json:"provisions"`
}

type ListResponse struct {
	Routines []Routine `json:"routines"`
	Total    int       `json:"total"`
}

type Handler struct {
	repo routinesRepo
	now  func() time.Time
}

func NewHandler(repo routinesRepo) *Handler {
	return &Handler{
		repo: repo,
		now:  time.Now,
	}
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.routines.list")
	defer span.End()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	activeOnly := false
	if activeOnlyStr := r.URL.Query().Get("active_only"); activeOnlyStr != "" {
		var err error
		activeOnly, err = strconv.ParseBool(activeOnlyStr)
		if err != nil {
			http.Error(w, "failed to parse active_only param", http.StatusBadRequest)
			return
		}
	}

	routines, err := handler.repo.List(ctx, user.UID)
	if err != nil {
		log.Errorf("list routines: %s", err)
		http.Error(w, "failed to get routines", http.StatusInternalServerError)
		return
	}

	if activeOnly {
		today := pkg.Today()
		active := make([]Routine, 0, len(routines))
		for _, routine := range routines {
			if routine.ActiveOn(today) {
				active = append(active, routine)
			}
		}
		routines = active
	}

	respJson, err := json.Marshal(ListResponse{
		Routines: routines,
		Total:    len(routines),
	})
	if err != nil {
		log.Errorf("marshal routines: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.routines.new")
	defer span.End()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req NewRoutineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("new routine, unmarshal json params: %s", err)
		http.Error(w, "add routine failed", http.StatusBadRequest)
		return
	}

	now := handler.now()
	routine := Routine{
		ID:          uuid.NewString(),
		UserID:      user.UID,
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Provisions:  NormalizeProvisions(req.Provisions),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if routine.Provisions == nil {
		routine.Provisions = []Provision{}
	}
	if err := routine.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := handler.repo.Add(ctx, routine); err != nil {
		log.Errorf("failed to add new routine [%s]: %s", routine.Name, err)
		http.Error(w, "error, failed to add new routine", http.StatusInternalServerError)
		return
	}

	routineJson, err := json.Marshal(routine)
	if err != nil {
		log.Errorf("failed to marshal new routine: %s", err)
		http.Error(w, "error, failed to add new routine", http.StatusInternalServerError)
		return
	}

	log.Debugf("new routine added: [%s] %s", routine.ID, routine.Name)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, routineJson, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.routines.get")
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

	routine, err := handler.repo.Get(ctx, user.UID, id)
	if err != nil {
		if errors.Is(err, ErrRoutineNotFound) {
			http.Error(w, "routine not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get routine %s: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	routineJson, err := json.Marshal(routine)
	if err != nil {
		log.Errorf("failed to marshal routine: %s", err)
		http.Error(w, "failed to marshal routine", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, routineJson, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.routines.update")
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

	var req UpdateRoutineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("update routine, unmarshal json params: %s", err)
		http.Error(w, "update routine failed", http.StatusBadRequest)
		return
	}

	if req.Name == nil && req.Description == nil && req.StartDate == nil &&
		req.EndDate == nil && req.Provisions == nil {
		http.Error(w, "no fields to update", http.StatusBadRequest)
		return
	}

	routine, err := handler.repo.Get(ctx, user.UID, id)
	if err != nil {
		if errors.Is(err, ErrRoutineNotFound) {
			http.Error(w, "routine not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get routine %s: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if req.Name != nil {
		routine.Name = *req.Name
	}
	if req.Description != nil {
		routine.Description = req.Description
	}
	if req.StartDate != nil {
		routine.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		routine.EndDate = req.EndDate
	}
	if req.Provisions != nil {
		// the provisions list replaces wholesale, ids the client
		// kept stay stable, orders get rewritten from position
		routine.Provisions = NormalizeProvisions(*req.Provisions)
	}
	routine.UpdatedAt = handler.now()

	if err := routine.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := handler.repo.Save(ctx, *routine); err != nil {
		log.Errorf("failed to update routine %s: %s", id, err)
		http.Error(w, "error, failed to update routine", http.StatusInternalServerError)
		return
	}

	routineJson, err := json.Marshal(routine)
	if err != nil {
		log.Errorf("failed to marshal updated routine: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	log.Debugf("routine updated: [%s] %s", routine.ID, routine.Name)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, routineJson, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.routines.delete")
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
		if errors.Is(err, ErrRoutineNotFound) {
			log.Debugf("routine %s not found", id)
			http.Error(w, "routine not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete routine %s: %s", id, err)
		http.Error(w, "routine not deleted", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
