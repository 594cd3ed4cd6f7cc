package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yles/portal/core/module"
	"github.com/yles/portal/core/policy"
	testutil "github.com/yles/portal/tests"
)

func TestModuleCRUD(t *testing.T) {
	f := setup(t)
	events := getToken(t, testutil.Actor(policy.RoleEvents))
	start := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	req, rec := newAuthRequest(http.MethodPost, "/v1/modules", events, marchallObj(t, module.NewModule{
		Name:        "  Opening ceremony ",
		Day:         1,
		StartTime:   &start,
		Venue:       "Main hall",
		VenueMapURL: "https://maps.example.com/main-hall",
	}))
	f.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created module.Module
	unmarshal(t, rec, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Opening ceremony", created.Name)
	require.NotNil(t, created.StartTime)
	assert.True(t, start.Equal(*created.StartTime))

	req, rec = newAuthRequest(http.MethodPut, "/v1/modules/"+created.ID, events, marchallObj(t, module.NewModule{
		Name: "Opening ceremony",
		Day:  2,
	}))
	f.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated module.Module
	unmarshal(t, rec, &updated)
	assert.Equal(t, 2, updated.Day)
	assert.Nil(t, updated.StartTime)

	// every known role reads the schedule
	req, rec = newAuthRequest(http.MethodGet, "/v1/modules/"+created.ID, getToken(t, testutil.Actor(policy.RoleDC)))
	f.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got module.Module
	unmarshal(t, rec, &got)
	assert.Equal(t, 2, got.Day)

	req, rec = newAuthRequest(http.MethodDelete, "/v1/modules/"+created.ID, events)
	f.serve(req, rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/v1/modules/"+created.ID, events)
	f.serve(req, rec)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModuleQuery(t *testing.T) {
	f := setup(t)
	tm := testutil.CreateTeam(t, f.teams, "Alpha", 100)
	testutil.CreateModule(t, f.modules, "Finale", 2)
	testutil.CreateModule(t, f.modules, "Quiz", 1, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	req, rec := newAuthRequest(http.MethodGet, "/v1/modules", getToken(t, testutil.Delegate(tm)))
	f.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var mods []module.Module
	unmarshal(t, rec, &mods)
	require.Len(t, mods, 2)
	assert.Equal(t, "Quiz", mods[0].Name)
	assert.Equal(t, "Finale", mods[1].Name)

	runHTTPTests(t, f, []httpTest{
		{name: "unknown role", path: "/v1/modules", token: getToken(t, testutil.Actor("janitor")), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
	})
}

func TestModuleGating(t *testing.T) {
	f := setup(t)
	mod := testutil.CreateModule(t, f.modules, "Opening", 1)
	body := marchallObj(t, module.NewModule{Name: "Opening", Day: 1})

	for _, role := range []policy.Role{policy.RoleFnR, policy.RoleDC, policy.RoleDelegate} {
		token := getToken(t, testutil.Actor(role))
		runHTTPTests(t, f, []httpTest{
			{name: string(role) + " create", method: http.MethodPost, path: "/v1/modules", body: body, token: token, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
			{name: string(role) + " update", method: http.MethodPut, path: "/v1/modules/" + mod.ID, body: body, token: token, wantCode: http.StatusForbidden},
			{name: string(role) + " delete", method: http.MethodDelete, path: "/v1/modules/" + mod.ID, token: token, wantCode: http.StatusForbidden},
		})
	}

	admin := getToken(t, testutil.Actor(policy.RoleAdmin))
	runHTTPTests(t, f, []httpTest{
		{name: "admin create", method: http.MethodPost, path: "/v1/modules", body: body, token: admin, wantCode: http.StatusCreated},
	})
}

func TestModuleValidation(t *testing.T) {
	f := setup(t)
	events := getToken(t, testutil.Actor(policy.RoleEvents))
	mod := testutil.CreateModule(t, f.modules, "Opening", 1)

	runHTTPTests(t, f, []httpTest{
		{
			name:     "blank name",
			method:   http.MethodPost,
			path:     "/v1/modules",
			body:     marchallObj(t, module.NewModule{Name: "  ", Day: 1}),
			token:    events,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "day zero",
			method:   http.MethodPost,
			path:     "/v1/modules",
			body:     marchallObj(t, module.NewModule{Name: "Quiz", Day: 0}),
			token:    events,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad map url",
			method:   http.MethodPut,
			path:     "/v1/modules/" + mod.ID,
			body:     marchallObj(t, module.NewModule{Name: "Quiz", Day: 1, VenueMapURL: "not a url"}),
			token:    events,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "update unknown",
			method:   http.MethodPut,
			path:     "/v1/modules/c0ffee00-0000-4000-8000-000000000000",
			body:     marchallObj(t, module.NewModule{Name: "Quiz", Day: 1}),
			token:    events,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: module.ErrNotFound.Error()}),
		},
		{
			name:     "delete unknown",
			method:   http.MethodDelete,
			path:     "/v1/modules/c0ffee00-0000-4000-8000-000000000000",
			token:    events,
			wantCode: http.StatusNotFound,
		},
	})
}
