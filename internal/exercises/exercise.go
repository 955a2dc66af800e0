package exercises

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrDuplicateName    = errors.New("exercise with that name already exists")
)

type MuscleGroup string

const (
	MuscleGroupChest      MuscleGroup = "chest"
	MuscleGroupBack       MuscleGroup = "back"
	MuscleGroupShoulders  MuscleGroup = "shoulders"
	MuscleGroupBiceps     MuscleGroup = "biceps"
	MuscleGroupTriceps    MuscleGroup = "triceps"
	MuscleGroupForearms   MuscleGroup = "forearms"
	MuscleGroupCore       MuscleGroup = "core"
	MuscleGroupQuads      MuscleGroup = "quads"
	MuscleGroupHamstrings MuscleGroup = "hamstrings"
	MuscleGroupGlutes     MuscleGroup = "glutes"
	MuscleGroupCalves     MuscleGroup = "calves"
	MuscleGroupFullBody   MuscleGroup = "full_body"
)

var muscleGroups = map[MuscleGroup]struct{}{
	MuscleGroupChest:      {},
	MuscleGroupBack:       {},
	MuscleGroupShoulders:  {},
	MuscleGroupBiceps:     {},
	MuscleGroupTriceps:    {},
	MuscleGroupForearms:   {},
	MuscleGroupCore:       {},
	MuscleGroupQuads:      {},
	MuscleGroupHamstrings: {},
	MuscleGroupGlutes:     {},
	MuscleGroupCalves:     {},
	MuscleGroupFullBody:   {},
}

func (mg MuscleGroup) Valid() bool {
	_, ok := muscleGroups[mg]
	return ok
}

type Category string

const (
	CategoryCompound    Category = "compound"
	CategoryIsolation   Category = "isolation"
	CategoryCardio      Category = "cardio"
	CategoryFlexibility Category = "flexibility"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryCompound, CategoryIsolation, CategoryCardio, CategoryFlexibility:
		return true
	}
	return false
}

type Exercise struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Name        string      `json:"name"`
	MuscleGroup MuscleGroup `json:"muscle_group"`
	Category    Category    `json:"category"`
	Notes       *string     `json:"notes"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (e Exercise) Validate() error {
	if e.Name == "" || len(e.Name) > 100 {
		return fmt.Errorf("name must be between 1 and 100 characters")
	}
	if !e.MuscleGroup.Valid() {
		return fmt.Errorf("invalid muscle group: %q", e.MuscleGroup)
	}
	if !e.Category.Valid() {
		return fmt.Errorf("invalid category: %q", e.Category)
	}
	return nil
}
