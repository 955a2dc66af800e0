package routines

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/ironlog/pkg"
)

var (
	ErrRoutineNotFound       = errors.New("routine not found")
	ErrUnknownProvisionType  = errors.New("unknown provision type")
	ErrProvisionDataMismatch = errors.New("provision data does not match its type")
)

const defaultRestSeconds = 90

// RoutineItem is one planned exercise: the targets to hit, either
// directly in a routine or nested inside a superset.
type RoutineItem struct {
	ID           string   `json:"id"`
	ExerciseID   string   `json:"exercise_id"`
	TargetSets   int      `json:"target_sets"`
	TargetReps   int      `json:"target_reps"`
	TargetWeight *float64 `json:"target_weight"`
	TargetRPE    *float64 `json:"target_rpe"`
	RestSeconds  int      `json:"rest_seconds"`
	Notes        *string  `json:"notes"`
	Order        int      `json:"order"`
}

func (item *RoutineItem) UnmarshalJSON(data []byte) error {
	type alias RoutineItem
	tmp := alias{RestSeconds: defaultRestSeconds}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*item = RoutineItem(tmp)
	return nil
}

func (item RoutineItem) Validate() error {
	if item.ExerciseID == "" {
		return fmt.Errorf("routine item: exercise id empty")
	}
	if item.TargetSets < 1 || item.TargetSets > 20 {
		return fmt.Errorf("routine item: target sets must be between 1 and 20")
	}
	if item.TargetReps < 1 || item.TargetReps > 100 {
		return fmt.Errorf("routine item: target reps must be between 1 and 100")
	}
	if item.TargetWeight != nil && *item.TargetWeight < 0 {
		return fmt.Errorf("routine item: target weight must not be negative")
	}
	if item.TargetRPE != nil && (*item.TargetRPE < 1 || *item.TargetRPE > 10) {
		return fmt.Errorf("routine item: target rpe must be between 1 and 10")
	}
	if item.RestSeconds < 0 || item.RestSeconds > 600 {
		return fmt.Errorf("routine item: rest seconds must be between 0 and 600")
	}
	return nil
}

// Superset groups items performed back-to-back sharing one rest period.
type Superset struct {
	ID          string        `json:"id"`
	Name        *string       `json:"name"`
	Items       []RoutineItem `json:"items"`
	RestSeconds int           `json:"rest_seconds"`
	Order       int           `json:"order"`
}

func (ss *Superset) UnmarshalJSON(data []byte) error {
	type alias Superset
	tmp := alias{RestSeconds: defaultRestSeconds}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*ss = Superset(tmp)
	return nil
}

func (ss Superset) Validate() error {
	if len(ss.Items) == 0 {
		return fmt.Errorf("superset: items empty")
	}
	if ss.RestSeconds < 0 || ss.RestSeconds > 600 {
		return fmt.Errorf("superset: rest seconds must be between 0 and 600")
	}
	for _, item := range ss.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type ProvisionType string

const (
	ProvisionTypeExercise ProvisionType = "exercise"
	ProvisionTypeSuperset ProvisionType = "superset"
)

// Provision is one line of a routine plan: either a single planned
// exercise or a superset. Exactly one of Item and Superset is set,
// depending on Type.
type Provision struct {
	Type     ProvisionType
	Order    int
	Item     *RoutineItem
	Superset *Superset
}

type provisionEnvelope struct {
	Type  ProvisionType   `json:"type"`
	Order int             `json:"order"`
	Data  json.RawMessage `json:"data"`
}

func (p Provision) MarshalJSON() ([]byte, error) {
	var data any
	switch p.Type {
	case ProvisionTypeExercise:
		data = p.Item
	case ProvisionTypeSuperset:
		data = p.Superset
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvisionType, p.Type)
	}
	return json.Marshal(struct {
		Type  ProvisionType `json:"type"`
		Order int           `json:"order"`
		Data  any           `json:"data"`
	}{
		Type:  p.Type,
		Order: p.Order,
		Data:  data,
	})
}

func (p *Provision) UnmarshalJSON(data []byte) error {
	var envelope provisionEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}

	*p = Provision{
		Type:  envelope.Type,
		Order: envelope.Order,
	}
	switch envelope.Type {
	case ProvisionTypeExercise:
		var item RoutineItem
		if err := json.Unmarshal(envelope.Data, &item); err != nil {
			return fmt.Errorf("%w: %s", ErrProvisionDataMismatch, err)
		}
		p.Item = &item
	case ProvisionTypeSuperset:
		var ss Superset
		if err := json.Unmarshal(envelope.Data, &ss); err != nil {
			return fmt.Errorf("%w: %s", ErrProvisionDataMismatch, err)
		}
		p.Superset = &ss
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvisionType, envelope.Type)
	}
	return nil
}

func (p Provision) Validate() error {
	switch p.Type {
	case ProvisionTypeExercise:
		if p.Item == nil {
			return ErrProvisionDataMismatch
		}
		return p.Item.Validate()
	case ProvisionTypeSuperset:
		if p.Superset == nil {
			return ErrProvisionDataMismatch
		}
		return p.Superset.Validate()
	}
	return fmt.Errorf("%w: %q", ErrUnknownProvisionType, p.Type)
}

type Routine struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Name        string      `json:"name"`
	Description *string     `json:"description"`
	StartDate   *pkg.Date   `json:"start_date"`
	EndDate     *pkg.Date   `json:"end_date"`
	Provisions  []Provision `json:"provisions"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (routine Routine) Validate() error {
	if routine.Name == "" || len(routine.Name) > 100 {
		return fmt.Errorf("routine name must be between 1 and 100 characters")
	}
	for _, p := range routine.Provisions {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ActiveOn reports whether the routine's schedule window contains the
// given day. Missing bounds are open ended.
func (routine Routine) ActiveOn(day pkg.Date) bool {
	if routine.StartDate != nil && routine.StartDate.After(day.Time) {
		return false
	}
	if routine.EndDate != nil && routine.EndDate.Before(day.Time) {
		return false
	}
	return true
}
