package routines_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/ironlog/internal/auth"
	"github.com/2beens/ironlog/internal/routines"
	"github.com/2beens/ironlog/pkg"
)

type fakeRoutinesRepo struct {
	byID map[string]routines.Routine
}

func newFakeRoutinesRepo() *fakeRoutinesRepo {
	return &fakeRoutinesRepo{byID: map[string]routines.Routine{}}
}

func (f *fakeRoutinesRepo) List(_ context.Context, userID string) ([]routines.Routine, error) {
	var out []routines.Routine
	for _, routine := range f.byID {
		if routine.UserID == userID {
			out = append(out, routine)
		}
	}
	return out, nil
}

func (f *fakeRoutinesRepo) Add(_ context.Context, routine routines.Routine) error {
	f.byID[routine.ID] = routine
	return nil
}

func (f *fakeRoutinesRepo) Get(_ context.Context, userID, id string) (*routines.Routine, error) {
	routine, ok := f.byID[id]
	if !ok || routine.UserID != userID {
		return nil, routines.ErrRoutineNotFound
	}
	return &routine, nil
}

func (f *fakeRoutinesRepo) Save(_ context.Context, routine routines.Routine) error {
	f.byID[routine.ID] = routine
	return nil
}

func (f *fakeRoutinesRepo) Delete(_ context.Context, userID, id string) error {
	routine, ok := f.byID[id]
	if !ok || routine.UserID != userID {
		return routines.ErrRoutineNotFound
	}
	delete(f.byID, id)
	return nil
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := auth.ContextWithUser(req.Context(), &auth.User{UID: "user-1"})
	return req.WithContext(ctx)
}

func withMuxVars(next http.HandlerFunc, key, value string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next(w, mux.SetURLVars(r, map[string]string{key: value}))
	}
}

func TestHandler_Create_NormalizesProvisions(t *testing.T) {
	repo := newFakeRoutinesRepo()
	handler := routines.NewHandler(repo)

	rr := httptest.NewRecorder()
	handler.HandleCreate(rr, authedRequest(http.MethodPost, "/api/routines", `{
		"name": "Push Day",
		"provisions": [
			{"type": "exercise", "order": 42, "data": {"exercise_id": "ex-1", "target_sets": 3, "target_reps": 10}},
			{"type": "superset", "order": 0, "data": {"items": [
				{"exercise_id": "ex-2", "target_sets": 3, "target_reps": 12},
				{"exercise_id": "ex-3", "target_sets": 3, "target_reps": 15}
			]}}
		]
	}`))
	require.Equal(t, http.StatusCreated, rr.Code)

	var created routines.Routine
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Len(t, created.Provisions, 2)

	assert.Equal(t, 0, created.Provisions[0].Order)
	assert.Equal(t, 1, created.Provisions[1].Order)
	require.NotNil(t, created.Provisions[0].Item)
	require.NotNil(t, created.Provisions[1].Superset)
	assert.Equal(t, 0, created.Provisions[1].Superset.Items[0].Order)
	assert.Equal(t, 1, created.Provisions[1].Superset.Items[1].Order)

	ids := map[string]struct{}{
		created.Provisions[0].Item.ID:              {},
		created.Provisions[1].Superset.ID:          {},
		created.Provisions[1].Superset.Items[0].ID: {},
		created.Provisions[1].Superset.Items[1].ID: {},
	}
	assert.Len(t, ids, 4)
	for id := range ids {
		assert.NotEmpty(t, id)
	}
}

func TestHandler_Create_UnknownProvisionType(t *testing.T) {
	handler := routines.NewHandler(newFakeRoutinesRepo())

	rr := httptest.NewRecorder()
	handler.HandleCreate(rr, authedRequest(http.MethodPost, "/api/routines", `{
		"name": "Bad",
		"provisions": [{"type": "circuit", "data": {}}]
	}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_Update_PreservesProvisionIDs(t *testing.T) {
	repo := newFakeRoutinesRepo()
	handler := routines.NewHandler(repo)

	rr := httptest.NewRecorder()
	handler.HandleCreate(rr, authedRequest(http.MethodPost, "/api/routines", `{
		"name": "Push Day",
		"provisions": [
			{"type": "exercise", "data": {"exercise_id": "ex-1", "target_sets": 3, "target_reps": 10}},
			{"type": "exercise", "data": {"exercise_id": "ex-2", "target_sets": 3, "target_reps": 10}}
		]
	}`))
	require.Equal(t, http.StatusCreated, rr.Code)

	var created routines.Routine
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	firstID := created.Provisions[0].Item.ID
	secondID := created.Provisions[1].Item.ID

	// swap the two provisions, keeping their ids
	swapped, err := json.Marshal(map[string]any{
		"provisions": []routines.Provision{created.Provisions[1], created.Provisions[0]},
	})
	require.NoError(t, err)

	rr = httptest.NewRecorder()
	req := authedRequest(http.MethodPatch, "/api/routines/"+created.ID, string(swapped))
	withMuxVars(handler.HandleUpdate, "id", created.ID)(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var updated routines.Routine
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	require.Len(t, updated.Provisions, 2)
	assert.Equal(t, secondID, updated.Provisions[0].Item.ID)
	assert.Equal(t, 0, updated.Provisions[0].Order)
	assert.Equal(t, firstID, updated.Provisions[1].Item.ID)
	assert.Equal(t, 1, updated.Provisions[1].Order)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt) || updated.UpdatedAt.Equal(created.UpdatedAt))
}

func TestHandler_Update_EmptyPatch(t *testing.T) {
	repo := newFakeRoutinesRepo()
	repo.byID["r1"] = routines.Routine{ID: "r1", UserID: "user-1", Name: "Legs"}
	handler := routines.NewHandler(repo)

	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodPatch, "/api/routines/r1", `{}`)
	withMuxVars(handler.HandleUpdate, "id", "r1")(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "no fields to update")
}

func TestHandler_List_ActiveOnly(t *testing.T) {
	repo := newFakeRoutinesRepo()
	ended := pkg.DateOf(time.Now().AddDate(0, 0, -10))
	future := pkg.DateOf(time.Now().AddDate(0, 0, 10))
	repo.byID["r1"] = routines.Routine{ID: "r1", UserID: "user-1", Name: "Old", EndDate: &ended}
	repo.byID["r2"] = routines.Routine{ID: "r2", UserID: "user-1", Name: "Current", EndDate: &future}
	repo.byID["r3"] = routines.Routine{ID: "r3", UserID: "user-1", Name: "Open"}
	handler := routines.NewHandler(repo)

	rr := httptest.NewRecorder()
	handler.HandleList(rr, authedRequest(http.MethodGet, "/api/routines?active_only=true", ""))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp routines.ListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	names := map[string]struct{}{}
	for _, routine := range resp.Routines {
		names[routine.Name] = struct{}{}
	}
	assert.Contains(t, names, "Current")
	assert.Contains(t, names, "Open")

	t.Run("all without filter", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.HandleList(rr, authedRequest(http.MethodGet, "/api/routines", ""))
		require.Equal(t, http.StatusOK, rr.Code)

		var resp routines.ListResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.Total)
	})
}

func TestHandler_Delete(t *testing.T) {
	repo := newFakeRoutinesRepo()
	repo.byID["r1"] = routines.Routine{ID: "r1", UserID: "user-1", Name: "Legs"}
	handler := routines.NewHandler(repo)

	rr := httptest.NewRecorder()
	withMuxVars(handler.HandleDelete, "id", "r1")(rr, authedRequest(http.MethodDelete, "/api/routines/r1", ""))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	withMuxVars(handler.HandleDelete, "id", "r1")(rr, authedRequest(http.MethodDelete, "/api/routines/r1", ""))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
