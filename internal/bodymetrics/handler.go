package bodymetrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

const defaultListMonths = 3

type bodyMetricsRepo interface {
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)
	SaveProfile(ctx context.Context, profile UserProfile) error
	UpdateProfile(ctx context.Context, userID string, fields map[string]any) error
	FindWeightLogByDate(ctx context.Context, userID string, date pkg.Date) (*WeightLog, error)
	SaveWeightLog(ctx context.Context, userID string, weightLog WeightLog) error
	ListWeightLogs(ctx context.Context, userID string, since pkg.Date) ([]WeightLog, error)
	DeleteWeightLog(ctx context.Context, userID, id string) error
}

type UpdateProfileRequest struct {
	DisplayName *string  `json:"display_name"`
	PhotoURL    *string  `json:"photo_url"`
	HeightCm    *float64 `json:"height_cm"`
}

type NewWeightLogRequest struct {
	Weight float64   `json:"weight"`
	Date   *pkg.Date `json:"date"`
	Notes  *string   `json:"notes"`
}

type WeightListResponse struct {
	WeightLogs []WeightLog `json:"weight_logs"`
	Total      int         `json:"total"`
}

type Handler struct {
	repo    bodyMetricsRepo
	metrics *metrics.Manager
	now     func() time.Time
}

func NewHandler(repo bodyMetricsRepo, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:    repo,
		metrics: metricsManager,
		now:     time.Now,
	}
}

func (handler *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodymetrics.getProfile")
	defer span.End()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	profile, err := handler.getOrCreateProfile(ctx, user)
	if err != nil {
		log.Errorf("get profile for %s: %s", user.UID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	profileJson, err := json.Marshal(profile)
	if err != nil {
		log.Errorf("failed to marshal profile: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, profileJson, http.StatusOK)
}

// getOrCreateProfile materializes the profile from the identity claims
// on first access.
func (handler *Handler) getOrCreateProfile(ctx context.Context, user *auth.User) (*UserProfile, error) {
	profile, err := handler.repo.GetProfile(ctx, user.UID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	now := handler.now()
	newProfile := UserProfile{
		UID:       user.UID,
		Email:     user.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if user.Name != "" {
		newProfile.DisplayName = &user.Name
	}
	if user.PictureURL != "" {
		newProfile.PhotoURL = &user.PictureURL
	}
	if err := handler.repo.SaveProfile(ctx, newProfile); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	log.Debugf("profile created for %s", user.UID)
	return &newProfile, nil
}

func (handler *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodymetrics.updateProfile")
	defer span.End()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("update profile, unmarshal json params: %s", err)
		http.Error(w, "update profile failed", http.StatusBadRequest)
		return
	}

	fields := map[string]any{}
	if req.DisplayName != nil {
		fields["display_name"] = *req.DisplayName
	}
	if req.PhotoURL != nil {
		fields["photo_url"] = *req.PhotoURL
	}
	if req.HeightCm != nil {
		if *req.HeightCm <= 0 || *req.HeightCm > 300 {
			http.Error(w, "height must be between 0 and 300 cm", http.StatusBadRequest)
			return
		}
		fields["height_cm"] = *req.HeightCm
	}
	if len(fields) == 0 {
		http.Error(w, "no fields to update", http.StatusBadRequest)
		return
	}
	fields["updated_at"] = handler.now()

	// patching an unseen profile materializes it first
	if _, err := handler.getOrCreateProfile(ctx, user); err != nil {
		log.Errorf("get or create profile for %s: %s", user.UID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := handler.repo.UpdateProfile(ctx, user.UID, fields); err != nil {
		log.Errorf("failed to update profile for %s: %s", user.UID, err)
		http.Error(w, "error, failed to update profile", http.StatusInternalServerError)
		return
	}

	profile, err := handler.repo.GetProfile(ctx, user.UID)
	if err != nil {
		log.Errorf("failed to get updated profile for %s: %s", user.UID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	profileJson, err := json.Marshal(profile)
	if err != nil {
		log.Errorf("failed to marshal updated profile: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, profileJson, http.StatusOK)
}

func (handler *Handler) HandleAddWeight(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodymetrics.addWeight")
	defer span.End()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req NewWeightLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("new weight log, unmarshal json params: %s", err)
		http.Error(w, "add weight log failed", http.StatusBadRequest)
		return
	}

	now := handler.now()
	date := pkg.DateOf(now)
	if req.Date != nil {
		date = *req.Date
	}

	weightLog := WeightLog{
		ID:        uuid.NewString(),
		Weight:    req.Weight,
		Date:      date,
		Notes:     req.Notes,
		CreatedAt: now,
	}
	if err := weightLog.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// upsert by date: a log for the same day keeps its original id
	existing, err := handler.repo.FindWeightLogByDate(ctx, user.UID, date)
	switch {
	case err == nil:
		weightLog.ID = existing.ID
		weightLog.CreatedAt = existing.CreatedAt
	case !errors.Is(err, ErrWeightLogNotFound):
		log.Errorf("check weight log for date %s: %s", date, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := handler.repo.SaveWeightLog(ctx, user.UID, weightLog); err != nil {
		log.Errorf("failed to save weight log for %s: %s", user.UID, err)
		http.Error(w, "error, failed to add weight log", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterWeightLogs.Inc()

	weightLogJson, err := json.Marshal(weightLog)
	if err != nil {
		log.Errorf("failed to marshal weight log: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	log.Debugf("weight log saved: [%s] %s", weightLog.ID, weightLog.Date)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, weightLogJson, http.StatusCreated)
}

func (handler *Handler) HandleListWeight(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodymetrics.listWeight")
	defer span.End()

	user, ok := auth.UserFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	months := defaultListMonths
	if monthsStr := r.URL.Query().Get("months"); monthsStr != "" {
		var err error
		months, err = strconv.Atoi(monthsStr)
		if err != nil || months < 1 {
			http.Error(w, "invalid months (has to be non-zero value)", http.StatusBadRequest)
			return
		}
	}

	// calendar approximation, a month counts as 30 days
	since := pkg.DateOf(handler.now()).AddDays(-months * 30)

	weightLogs, err := handler.repo.ListWeightLogs(ctx, user.UID, since)
	if err != nil {
		log.Errorf("list weight logs: %s", err)
		http.Error(w, "failed to get weight logs", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(WeightListResponse{
		WeightLogs: weightLogs,
		Total:      len(weightLogs),
	})
	if err != nil {
		log.Errorf("marshal weight logs: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleDeleteWeight(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodymetrics.deleteWeight")
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

	if err := handler.repo.DeleteWeightLog(ctx, user.UID, id); err != nil {
		if errors.Is(err, ErrWeightLogNotFound) {
			log.Debugf("weight log %s not found", id)
			http.Error(w, "weight log not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete weight log %s: %s", id, err)
		http.Error(w, "weight log not deleted", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
