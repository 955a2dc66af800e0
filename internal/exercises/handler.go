package exercises

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/ironlog/internal/auth"
	"github.com/2beens/ironlog/internal/telemetry/tracing"
	"github.com/2beens/ironlog/pkg"
)

type exercisesRepo interface {
	List(ctx context.Context, userID string, muscleGroup MuscleGroup) ([]Exercise, error)
	Add(ctx context.Context, exercise Exercise) error
	Get(ctx context.Context, userID, id string) (*Exercise, error)
	FindByName(ctx context.Context, userID, name string) (*Exercise, error)
	Update(ctx context.Context, userID, id string, fields map[string]any) error
	Delete(ctx context.Context, userID, id string) error
}

type NewExerciseRequest struct {
	Name        string      `json:"name"`
	MuscleGroup MuscleGroup `json:"muscle_group"`
	Category    Category    `json:"category"`
	Notes       *string     `json:"notes"`
}

type UpdateExerciseRequest struct {
	Name        *string      `json:"name"`
	MuscleGroup *MuscleGroup `json:"muscle_group"`
	Category    *Category    `json:"category"`
	Notes       *string      `json:"notes"`
}

type ListResponse struct {
	Exercises []Exercise `json:"exercises"`
	Total     int        `json:"total"`
}

type Handler struct {
	repo exercisesRepo
	now  func() time.Time
}

func NewHandler(repo exercisesRepo) *Handler {
	return &Handler{
		repo: repo,
		now:  time.Now,
	}
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.list")
	defer span.End()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	muscleGroup := MuscleGroup(r.URL.Query().Get("muscle_group"))
	if muscleGroup != "" && !muscleGroup.Valid() {
		http.Error(w, "invalid muscle group", http.StatusBadRequest)
		return
	}

	exercises, err := handler.repo.List(ctx, user.UID, muscleGroup)
	if err != nil {
		log.Errorf("list exercises: %s", err)
		http.Error(w, "failed to get exercises", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(ListResponse{
		Exercises: exercises,
		Total:     len(exercises),
	})
	if err != nil {
		log.Errorf("marshal exercises: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.new")
	defer span.End()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req NewExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("new exercise, unmarshal json params: %s", err)
		http.Error(w, "add exercise failed", http.StatusBadRequest)
		return
	}

	now := handler.now()
	exercise := Exercise{
		ID:          uuid.NewString(),
		UserID:      user.UID,
		Name:        req.Name,
		MuscleGroup: req.MuscleGroup,
		Category:    req.Category,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := exercise.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, err := handler.repo.FindByName(ctx, user.UID, exercise.Name)
	switch {
	case err == nil:
		http.Error(w, ErrDuplicateName.Error(), http.StatusBadRequest)
		return
	case !errors.Is(err, ErrExerciseNotFound):
		log.Errorf("check exercise name [%s]: %s", exercise.Name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := handler.repo.Add(ctx, exercise); err != nil {
		log.Errorf("failed to add new exercise [%s]: %s", exercise.Name, err)
		http.Error(w, "error, failed to add new exercise", http.StatusInternalServerError)
		return
	}

	exerciseJson, err := json.Marshal(exercise)
	if err != nil {
		log.Errorf("failed to marshal new exercise: %s", err)
		http.Error(w, "error, failed to add new exercise", http.StatusInternalServerError)
		return
	}

	log.Debugf("new exercise added: [%s] %s", exercise.ID, exercise.Name)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, exerciseJson, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.get")
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

	exercise, err := handler.repo.Get(ctx, user.UID, id)
	if err != nil {
		if errors.Is(err, ErrExerciseNotFound) {
			http.Error(w, "exercise not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get exercise %s: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	exerciseJson, err := json.Marshal(exercise)
	if err != nil {
		log.Errorf("failed to marshal exercise: %s", err)
		http.Error(w, "failed to marshal exercise", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, exerciseJson, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.update")
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

	var req UpdateExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("update exercise, unmarshal json params: %s", err)
		http.Error(w, "update exercise failed", http.StatusBadRequest)
		return
	}

	fields := map[string]any{}
	if req.Name != nil {
		if *req.Name == "" || len(*req.Name) > 100 {
			http.Error(w, "name must be between 1 and 100 characters", http.StatusBadRequest)
			return
		}
		fields["name"] = *req.Name
	}
	if req.MuscleGroup != nil {
		if !req.MuscleGroup.Valid() {
			http.Error(w, "invalid muscle group", http.StatusBadRequest)
			return
		}
		fields["muscle_group"] = *req.MuscleGroup
	}
	if req.Category != nil {
		if !req.Category.Valid() {
			http.Error(w, "invalid category", http.StatusBadRequest)
			return
		}
		fields["category"] = *req.Category
	}
	if req.Notes != nil {
		fields["notes"] = *req.Notes
	}
	if len(fields) == 0 {
		http.Error(w, "no fields to update", http.StatusBadRequest)
		return
	}

	if req.Name != nil {
		existing, err := handler.repo.FindByName(ctx, user.UID, *req.Name)
		switch {
		case err == nil && existing.ID != id:
			http.Error(w, ErrDuplicateName.Error(), http.StatusBadRequest)
			return
		case err != nil && !errors.Is(err, ErrExerciseNotFound):
			log.Errorf("check exercise name [%s]: %s", *req.Name, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	fields["updated_at"] = handler.now()

	if err := handler.repo.Update(ctx, user.UID, id, fields); err != nil {
		if errors.Is(err, ErrExerciseNotFound) {
			http.Error(w, "exercise not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to update exercise %s: %s", id, err)
		http.Error(w, "error, failed to update exercise", http.StatusInternalServerError)
		return
	}

	exercise, err := handler.repo.Get(ctx, user.UID, id)
	if err != nil {
		log.Errorf("failed to get updated exercise %s: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	exerciseJson, err := json.Marshal(exercise)
	if err != nil {
		log.Errorf("failed to marshal updated exercise: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	log.Debugf("exercise updated: [%s] %s", exercise.ID, exercise.Name)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, exerciseJson, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.delete")
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
		if errors.Is(err, ErrExerciseNotFound) {
			log.Debugf("exercise %s not found", id)
			http.Error(w, "exercise not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete exercise %s: %s", id, err)
		http.Error(w, "exercise not deleted", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
