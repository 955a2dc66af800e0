package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/ironlog/internal/docstore"
	"github.com/2beens/ironlog/internal/telemetry/tracing"
	"github.com/2beens/ironlog/pkg"
)

const collectionName = "sessions"

type Repo struct {
	store *docstore.Store
	now   func() time.Time
}

func NewRepo(store *docstore.Store) *Repo {
	return &Repo{
		store: store,
		now:   time.Now,
	}
}

func (r *Repo) Add(ctx context.Context, session WorkoutSession) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "sessions.repo.add")
	defer span.End()

	return r.store.Collection(session.UserID, collectionName).Set(ctx, session.ID, session)
}

func (r *Repo) Get(ctx context.Context, userID, id string) (*WorkoutSession, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "sessions.repo.get")
	defer span.End()

	doc, err := r.store.Collection(userID, collectionName).Get(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var session WorkoutSession
	if err := doc.To(&session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, nil
}

// GetActive returns the user's session with no end time, or nil when
// none is active. If more than one qualifies, the most recently
// started wins.
func (r *Repo) GetActive(ctx context.Context, userID string) (*WorkoutSession, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "sessions.repo.getActive")
	defer span.End()

	docs, err := r.store.Collection(userID, collectionName).
		Query().
		Where("end_time", docstore.OpEqual, nil).
		OrderBy("start_time", true).
		Limit(1).
		Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("query active session: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var session WorkoutSession
	if err := docs[0].To(&session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", docs[0].ID, err)
	}
	return &session, nil
}

// Modify runs a read-modify-write cycle over one session document:
// the whole document round-trips because the store has no nested
// array patch primitive. Not transactional, concurrent mutations of
// the same session are last-writer-wins.
func (r *Repo) Modify(
	ctx context.Context,
	userID, id string,
	mutate func(*WorkoutSession) error,
) (*WorkoutSession, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "sessions.repo.modify")
	defer span.End()

	session, err := r.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := mutate(session); err != nil {
		return nil, err
	}
	session.UpdatedAt = r.now()

	if err := r.store.Collection(userID, collectionName).Set(ctx, id, session); err != nil {
		return nil, fmt.Errorf("persist session %s: %w", id, err)
	}
	return session, nil
}

type ListParams struct {
	StartDate *pkg.Date
	EndDate   *pkg.Date
	Limit     int
}

func (r *Repo) List(ctx context.Context, userID string, params ListParams) ([]WorkoutSession, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "sessions.repo.list")
	defer span.End()

	query := r.store.Collection(userID, collectionName).Query()
	if params.StartDate != nil {
		query = query.Where("date", docstore.OpGreaterEqual, params.StartDate.String())
	}
	if params.EndDate != nil {
		query = query.Where("date", docstore.OpLessEqual, params.EndDate.String())
	}
	docs, err := query.
		OrderBy("date", true).
		Limit(params.Limit).
		Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	sessions := make([]WorkoutSession, 0, len(docs))
	for _, doc := range docs {
		var session WorkoutSession
		if err := doc.To(&session); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", doc.ID, err)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (r *Repo) Delete(ctx context.Context, userID, id string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "sessions.repo.delete")
	defer span.End()

	err := r.store.Collection(userID, collectionName).Delete(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}
