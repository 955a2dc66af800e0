package bodymetrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/ironlog/internal/docstore"
	"github.com/2beens/ironlog/internal/telemetry/tracing"
	"github.com/2beens/ironlog/pkg"
)

const (
	profileCollection = "profile"
	profileDocID      = "profile"

	weightLogsCollection = "weight_logs"
)

type Repo struct {
	store *docstore.Store
}

func NewRepo(store *docstore.Store) *Repo {
	return &Repo{store: store}
}

func (r *Repo) GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "bodymetrics.repo.getProfile")
	defer span.End()

	doc, err := r.store.Collection(userID, profileCollection).Get(ctx, profileDocID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	var profile UserProfile
	if err := doc.To(&profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &profile, nil
}

func (r *Repo) SaveProfile(ctx context.Context, profile UserProfile) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "bodymetrics.repo.saveProfile")
	defer span.End()

	return r.store.Collection(profile.UID, profileCollection).Set(ctx, profileDocID, profile)
}

func (r *Repo) UpdateProfile(ctx context.Context, userID string, fields map[string]any) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "bodymetrics.repo.updateProfile")
	defer span.End()

	err := r.store.Collection(userID, profileCollection).Update(ctx, profileDocID, fields)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrProfileNotFound
		}
		return err
	}
	return nil
}

// FindWeightLogByDate drives the one-log-per-date upsert.
func (r *Repo) FindWeightLogByDate(ctx context.Context, userID string, date pkg.Date) (*WeightLog, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "bodymetrics.repo.findWeightLogByDate")
	defer span.End()

	docs, err := r.store.Collection(userID, weightLogsCollection).
		Query().
		Where("date", docstore.OpEqual, date.String()).
		Limit(1).
		Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("query weight logs by date: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrWeightLogNotFound
	}

	var weightLog WeightLog
	if err := docs[0].To(&weightLog); err != nil {
		return nil, fmt.Errorf("decode weight log %s: %w", docs[0].ID, err)
	}
	return &weightLog, nil
}

func (r *Repo) SaveWeightLog(ctx context.Context, userID string, weightLog WeightLog) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "bodymetrics.repo.saveWeightLog")
	defer span.End()

	return r.store.Collection(userID, weightLogsCollection).Set(ctx, weightLog.ID, weightLog)
}

func (r *Repo) ListWeightLogs(ctx context.Context, userID string, since pkg.Date) ([]WeightLog, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "bodymetrics.repo.listWeightLogs")
	defer span.End()

	docs, err := r.store.Collection(userID, weightLogsCollection).
		Query().
		Where("date", docstore.OpGreaterEqual, since.String()).
		OrderBy("date", true).
		Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("query weight logs: %w", err)
	}

	weightLogs := make([]WeightLog, 0, len(docs))
	for _, doc := range docs {
		var weightLog WeightLog
		if err := doc.To(&weightLog); err != nil {
			return nil, fmt.Errorf("decode weight log %s: %w", doc.ID, err)
		}
		weightLogs = append(weightLogs, weightLog)
	}
	return weightLogs, nil
}

func (r *Repo) DeleteWeightLog(ctx context.Context, userID, id string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "bodymetrics.repo.deleteWeightLog")
	defer span.End()

	err := r.store.Collection(userID, weightLogsCollection).Delete(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrWeightLogNotFound
		}
		return err
	}
	return nil
}
