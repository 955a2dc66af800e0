package exercises

import (
	"context"
	"errors"
	"fmt"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/ironlog/internal/docstore"
	"github.com/2beens/ironlog/internal/telemetry/tracing"
)

const (
	collectionName = "exercises"

	nameCacheSizeBytes  = 512 * 1024
	nameCacheTTLSeconds = 5 * 60
)

type Repo struct {
	store *docstore.Store

	// exercise names are denormalized into session records at
	// add-time and looked up on a hot path, hence the cache
	nameCache *freecache.Cache
}

func NewRepo(store *docstore.Store) *Repo {
	return &Repo{
		store:     store,
		nameCache: freecache.NewCache(nameCacheSizeBytes),
	}
}

func (r *Repo) List(ctx context.Context, userID string, muscleGroup MuscleGroup) ([]Exercise, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exercises.repo.list")
	defer span.End()

	query := r.store.Collection(userID, collectionName).Query()
	if muscleGroup != "" {
		query = query.Where("muscle_group", docstore.OpEqual, string(muscleGroup))
	}
	docs, err := query.OrderBy("name", false).Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}

	exercises := make([]Exercise, 0, len(docs))
	for _, doc := range docs {
		var e Exercise
		if err := doc.To(&e); err != nil {
			return nil, fmt.Errorf("decode exercise %s: %w", doc.ID, err)
		}
		exercises = append(exercises, e)
	}
	return exercises, nil
}

func (r *Repo) Add(ctx context.Context, exercise Exercise) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exercises.repo.add")
	defer span.End()

	return r.store.Collection(exercise.UserID, collectionName).Set(ctx, exercise.ID, exercise)
}

func (r *Repo) Get(ctx context.Context, userID, id string) (*Exercise, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exercises.repo.get")
	defer span.End()

	doc, err := r.store.Collection(userID, collectionName).Get(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}

	var e Exercise
	if err := doc.To(&e); err != nil {
		return nil, fmt.Errorf("decode exercise %s: %w", id, err)
	}
	return &e, nil
}

// FindByName returns the exercise with the given name, or
// ErrExerciseNotFound when the user has no exercise by that name.
func (r *Repo) FindByName(ctx context.Context, userID, name string) (*Exercise, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exercises.repo.findByName")
	defer span.End()

	docs, err := r.store.Collection(userID, collectionName).
		Query().
		Where("name", docstore.OpEqual, name).
		Limit(1).
		Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("query exercises by name: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrExerciseNotFound
	}

	var e Exercise
	if err := docs[0].To(&e); err != nil {
		return nil, fmt.Errorf("decode exercise %s: %w", docs[0].ID, err)
	}
	return &e, nil
}

func (r *Repo) Update(ctx context.Context, userID, id string, fields map[string]any) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exercises.repo.update")
	defer span.End()

	err := r.store.Collection(userID, collectionName).Update(ctx, id, fields)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrExerciseNotFound
		}
		return err
	}

	r.nameCache.Del(nameCacheKey(userID, id))
	return nil
}

func (r *Repo) Delete(ctx context.Context, userID, id string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exercises.repo.delete")
	defer span.End()

	err := r.store.Collection(userID, collectionName).Delete(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrExerciseNotFound
		}
		return err
	}

	r.nameCache.Del(nameCacheKey(userID, id))
	return nil
}

// Name resolves an exercise id to its current name, going through a
// short-lived cache. Returns ErrExerciseNotFound for unknown ids.
func (r *Repo) Name(ctx context.Context, userID, id string) (string, error) {
	key := nameCacheKey(userID, id)
	if cached, err := r.nameCache.Get(key); err == nil {
		return string(cached), nil
	}

	exercise, err := r.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}

	if err := r.nameCache.Set(key, []byte(exercise.Name), nameCacheTTLSeconds); err != nil {
		// cache failures must not break the lookup
		log.Tracef("set exercise name cache [%s]: %s", id, err)
	}
	return exercise.Name, nil
}

func nameCacheKey(userID, id string) []byte {
	return []byte(userID + "||" + id)
}
