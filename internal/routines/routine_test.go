package routines

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/ironlog/pkg"
)

func TestProvision_UnmarshalExercise(t *testing.T) {
	var p Provision
	require.NoError(t, json.Unmarshal([]byte(`{
		"type": "exercise",
		"order": 2,
		"data": {"exercise_id": "ex-1", "target_sets": 3, "target_reps": 10}
	}`), &p))

	assert.Equal(t, ProvisionTypeExercise, p.Type)
	assert.Equal(t, 2, p.Order)
	require.NotNil(t, p.Item)
	assert.Nil(t, p.Superset)
	assert.Equal(t, "ex-1", p.Item.ExerciseID)
	// rest seconds default kicks in when the field is absent
	assert.Equal(t, 90, p.Item.RestSeconds)
}

func TestProvision_UnmarshalSuperset(t *testing.T) {
	var p Provision
	require.NoError(t, json.Unmarshal([]byte(`{
		"type": "superset",
		"order": 0,
		"data": {
			"name": "push pair",
			"rest_seconds": 120,
			"items": [
				{"exercise_id": "ex-1", "target_sets": 3, "target_reps": 10, "rest_seconds": 0},
				{"exercise_id": "ex-2", "target_sets": 3, "target_reps": 12}
			]
		}
	}`), &p))

	assert.Equal(t, ProvisionTypeSuperset, p.Type)
	require.NotNil(t, p.Superset)
	assert.Nil(t, p.Item)
	assert.Equal(t, 120, p.Superset.RestSeconds)
	require.Len(t, p.Superset.Items, 2)
	assert.Equal(t, 0, p.Superset.Items[0].RestSeconds)
	assert.Equal(t, 90, p.Superset.Items[1].RestSeconds)
}

func TestProvision_UnmarshalUnknownType(t *testing.T) {
	var p Provision
	err := json.Unmarshal([]byte(`{"type": "circuit", "data": {}}`), &p)
	require.ErrorIs(t, err, ErrUnknownProvisionType)
}

func TestProvision_MarshalRoundTrip(t *testing.T) {
	original := Provision{
		Type:  ProvisionTypeSuperset,
		Order: 1,
		Superset: &Superset{
			ID:          "ss-1",
			RestSeconds: 60,
			Items: []RoutineItem{
				{ID: "i1", ExerciseID: "ex-1", TargetSets: 4, TargetReps: 6, RestSeconds: 0, Order: 0},
			},
		},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Provision
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestRoutineItem_Validate(t *testing.T) {
	valid := RoutineItem{ExerciseID: "ex-1", TargetSets: 3, TargetReps: 10, RestSeconds: 90}
	require.NoError(t, valid.Validate())

	for name, mutate := range map[string]func(*RoutineItem){
		"no exercise":    func(i *RoutineItem) { i.ExerciseID = "" },
		"zero sets":      func(i *RoutineItem) { i.TargetSets = 0 },
		"too many sets":  func(i *RoutineItem) { i.TargetSets = 21 },
		"zero reps":      func(i *RoutineItem) { i.TargetReps = 0 },
		"negative w":     func(i *RoutineItem) { w := -1.0; i.TargetWeight = &w },
		"rpe too high":   func(i *RoutineItem) { rpe := 11.0; i.TargetRPE = &rpe },
		"rest too long":  func(i *RoutineItem) { i.RestSeconds = 601 },
		"negative rest":  func(i *RoutineItem) { i.RestSeconds = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			item := valid
			mutate(&item)
			assert.Error(t, item.Validate())
		})
	}
}

func TestRoutine_ActiveOn(t *testing.T) {
	day := pkg.NewDate(2024, time.June, 15)
	start := pkg.NewDate(2024, time.June, 1)
	end := pkg.NewDate(2024, time.June, 30)
	past := pkg.NewDate(2024, time.May, 31)

	assert.True(t, Routine{}.ActiveOn(day))
	assert.True(t, Routine{StartDate: &start, EndDate: &end}.ActiveOn(day))
	assert.True(t, Routine{StartDate: &start}.ActiveOn(day))
	assert.False(t, Routine{EndDate: &past}.ActiveOn(day))
	assert.False(t, Routine{StartDate: &end}.ActiveOn(day))
	// inclusive bounds
	assert.True(t, Routine{StartDate: &day, EndDate: &day}.ActiveOn(day))
}
