package routines

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemProvision(id string, order int) Provision {
	return Provision{
		Type:  ProvisionTypeExercise,
		Order: order,
		Item: &RoutineItem{
			ID:         id,
			ExerciseID: "ex-1",
			TargetSets: 3,
			TargetReps: 10,
			Order:      order,
		},
	}
}

func TestNormalizeProvisions_OrdersFollowPosition(t *testing.T) {
	// client-supplied order values are garbage on purpose
	provisions := []Provision{
		itemProvision("a", 7),
		itemProvision("b", 7),
		itemProvision("c", 0),
	}

	normalized := NormalizeProvisions(provisions)
	require.Len(t, normalized, 3)
	for i, p := range normalized {
		assert.Equal(t, i, p.Order)
		assert.Equal(t, i, p.Item.Order)
	}
	assert.Equal(t, "a", normalized[0].Item.ID)
	assert.Equal(t, "b", normalized[1].Item.ID)
	assert.Equal(t, "c", normalized[2].Item.ID)
}

func TestNormalizeProvisions_GeneratesMissingIDs(t *testing.T) {
	provisions := []Provision{
		itemProvision("", 0),
		{
			Type: ProvisionTypeSuperset,
			Superset: &Superset{
				Items: []RoutineItem{
					{ExerciseID: "ex-2", TargetSets: 3, TargetReps: 8},
					{ExerciseID: "ex-3", TargetSets: 3, TargetReps: 8},
				},
			},
		},
	}

	normalized := NormalizeProvisions(provisions)

	// four generated ids: the bare item, the superset, two nested items
	seen := map[string]struct{}{
		normalized[0].Item.ID:              {},
		normalized[1].Superset.ID:          {},
		normalized[1].Superset.Items[0].ID: {},
		normalized[1].Superset.Items[1].ID: {},
	}
	assert.Len(t, seen, 4)
	for id := range seen {
		assert.NotEmpty(t, id)
	}

	assert.Equal(t, 0, normalized[0].Order)
	assert.Equal(t, 1, normalized[1].Order)
	assert.Equal(t, 1, normalized[1].Superset.Order)
	assert.Equal(t, 0, normalized[1].Superset.Items[0].Order)
	assert.Equal(t, 1, normalized[1].Superset.Items[1].Order)
}

func TestNormalizeProvisions_PreservesSuppliedIDs(t *testing.T) {
	provisions := []Provision{
		{
			Type: ProvisionTypeSuperset,
			Superset: &Superset{
				ID: "ss-1",
				Items: []RoutineItem{
					{ID: "item-1", ExerciseID: "ex-1", TargetSets: 3, TargetReps: 8},
					{ExerciseID: "ex-2", TargetSets: 3, TargetReps: 8},
				},
			},
		},
		itemProvision("item-2", 99),
	}

	normalized := NormalizeProvisions(provisions)
	assert.Equal(t, "ss-1", normalized[0].Superset.ID)
	assert.Equal(t, "item-1", normalized[0].Superset.Items[0].ID)
	assert.NotEmpty(t, normalized[0].Superset.Items[1].ID)
	assert.Equal(t, "item-2", normalized[1].Item.ID)
	assert.Equal(t, 1, normalized[1].Order)
}

func TestNormalizeProvisions_Idempotent(t *testing.T) {
	provisions := NormalizeProvisions([]Provision{
		itemProvision("", 5),
		itemProvision("", 5),
	})
	firstIDs := []string{provisions[0].Item.ID, provisions[1].Item.ID}

	again := NormalizeProvisions(provisions)
	assert.Equal(t, firstIDs[0], again[0].Item.ID)
	assert.Equal(t, firstIDs[1], again[1].Item.ID)
	assert.Equal(t, 0, again[0].Order)
	assert.Equal(t, 1, again[1].Order)
}

func TestNormalizeProvisions_ReorderKeepsIDs(t *testing.T) {
	provisions := NormalizeProvisions([]Provision{
		itemProvision("first", 0),
		itemProvision("second", 0),
	})

	// client moves "second" to the front
	reordered := NormalizeProvisions([]Provision{provisions[1], provisions[0]})
	assert.Equal(t, "second", reordered[0].Item.ID)
	assert.Equal(t, 0, reordered[0].Order)
	assert.Equal(t, "first", reordered[1].Item.ID)
	assert.Equal(t, 1, reordered[1].Order)
}
