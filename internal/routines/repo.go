package routines

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/ironlog/internal/docstore"
	"github.com/2beens/ironlog/internal/telemetry/tracing"
)

const collectionName = "routines"

type Repo struct {
	store *docstore.Store
}

func NewRepo(store *docstore.Store) *Repo {
	return &Repo{store: store}
}

func (r *Repo) List(ctx context.Context, userID string) ([]Routine, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "routines.repo.list")
	defer span.End()

	docs, err := r.store.Collection(userID, collectionName).
		Query().
		OrderBy("created_at", true).
		Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("query routines: %w", err)
	}

	routines := make([]Routine, 0, len(docs))
	for _, doc := range docs {
		var routine Routine
		if err := doc.To(&routine); err != nil {
			return nil, fmt.Errorf("decode routine %s: %w", doc.ID, err)
		}
		routines = append(routines, routine)
	}
	return routines, nil
}

func (r *Repo) Add(ctx context.Context, routine Routine) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "routines.repo.add")
	defer span.End()

	return r.store.Collection(routine.UserID, collectionName).Set(ctx, routine.ID, routine)
}

func (r *Repo) Get(ctx context.Context, userID, id string) (*Routine, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "routines.repo.get")
	defer span.End()

	doc, err := r.store.Collection(userID, collectionName).Get(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrRoutineNotFound
		}
		return nil, err
	}

	var routine Routine
	if err := doc.To(&routine); err != nil {
		return nil, fmt.Errorf("decode routine %s: %w", id, err)
	}
	return &routine, nil
}

// Save overwrites the whole routine document. Patches go through a
// read-modify-write in the handler since provisions replace wholesale.
func (r *Repo) Save(ctx context.Context, routine Routine) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "routines.repo.save")
	defer span.End()

	return r.store.Collection(routine.UserID, collectionName).Set(ctx, routine.ID, routine)
}

// Name resolves a routine id to its name, for denormalized snapshots.
func (r *Repo) Name(ctx context.Context, userID, id string) (string, error) {
	routine, err := r.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}
	return routine.Name, nil
}

func (r *Repo) Delete(ctx context.Context, userID, id string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "routines.repo.delete")
	defer span.End()

	err := r.store.Collection(userID, collectionName).Delete(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrRoutineNotFound
		}
		return err
	}
	return nil
}
