package sessions

import (
	"errors"
	"fmt"
	"time"

	"github.com/2beens/ironlog/pkg"
)

var (
	ErrSessionNotFound           = errors.New("session not found")
	ErrPerformedExerciseNotFound = errors.New("performed exercise not found in session")
	ErrActiveSessionExists       = errors.New("an active session already exists")
)

// PerformedSet is one logged set. Set numbers are 1-based, assigned
// at append time and never renumbered.
type PerformedSet struct {
	SetNumber int      `json:"set_number"`
	Reps      int      `json:"reps"`
	Weight    float64  `json:"weight"`
	RPE       *float64 `json:"rpe"`
	Completed bool     `json:"completed"`
	Notes     *string  `json:"notes"`
}

func (set PerformedSet) Validate() error {
	if set.Reps < 0 || set.Reps > 200 {
		return fmt.Errorf("set reps must be between 0 and 200")
	}
	if set.Weight < 0 {
		return fmt.Errorf("set weight must not be negative")
	}
	if set.RPE != nil && (*set.RPE < 1 || *set.RPE > 10) {
		return fmt.Errorf("set rpe must be between 1 and 10")
	}
	return nil
}

// PerformedExercise records an exercise actually done during a
// session. ExerciseName is snapshotted from the catalog when the
// exercise is added and not re-resolved afterwards, so later catalog
// edits leave history untouched.
type PerformedExercise struct {
	ID            string         `json:"id"`
	ExerciseID    string         `json:"exercise_id"`
	RoutineItemID *string        `json:"routine_item_id"`
	AdHoc         bool           `json:"ad_hoc"`
	ExerciseName  *string        `json:"exercise_name"`
	Sets          []PerformedSet `json:"sets"`
	Order         int            `json:"order"`
	Notes         *string        `json:"notes"`
}

type WorkoutSession struct {
	ID                 string              `json:"id"`
	UserID             string              `json:"user_id"`
	RoutineID          *string             `json:"routine_id"`
	RoutineName        *string             `json:"routine_name"`
	Date               pkg.Date            `json:"date"`
	StartTime          time.Time           `json:"start_time"`
	EndTime            *time.Time          `json:"end_time"`
	PerformedExercises []PerformedExercise `json:"performed_exercises"`
	Notes              *string             `json:"notes"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// Active reports whether the session is still running.
func (session WorkoutSession) Active() bool {
	return session.EndTime == nil
}

// AddExercise appends a performed exercise at the end of the list,
// its order index derived from the current length.
func (session *WorkoutSession) AddExercise(performed PerformedExercise) *PerformedExercise {
	performed.Order = len(session.PerformedExercises)
	if performed.Sets == nil {
		performed.Sets = []PerformedSet{}
	}
	session.PerformedExercises = append(session.PerformedExercises, performed)
	return &session.PerformedExercises[len(session.PerformedExercises)-1]
}

// AddSet appends a set to the performed exercise with the given id.
// The set number is the current count plus one, strictly increasing
// and gap-free within one exercise.
func (session *WorkoutSession) AddSet(performedID string, set PerformedSet) (*PerformedSet, error) {
	for i := range session.PerformedExercises {
		performed := &session.PerformedExercises[i]
		if performed.ID != performedID {
			continue
		}
		set.SetNumber = len(performed.Sets) + 1
		set.Completed = true
		performed.Sets = append(performed.Sets, set)
		return &performed.Sets[len(performed.Sets)-1], nil
	}
	return nil, ErrPerformedExerciseNotFound
}
