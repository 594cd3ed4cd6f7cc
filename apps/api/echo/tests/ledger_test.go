package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yles/portal/core/ledger"
	"github.com/yles/portal/core/policy"
	"github.com/yles/portal/core/team"
	testutil "github.com/yles/portal/tests"
)

type syncResp struct {
	Error   string       `json:"error"`
	TeamID  string       `json:"team_id"`
	Fine    *ledger.Fine `json:"fine"`
	Removed int          `json:"removed"`
	Retry   string       `json:"retry"`
}

func TestLedgerScenario(t *testing.T) {
	f := setup(t)
	tm := testutil.CreateTeam(t, f.teams, "Alpha", 100)
	fnr := getToken(t, testutil.Actor(policy.RoleFnR))
	dc := getToken(t, testutil.Actor(policy.RoleDC))

	addFine := func(token string, amount int64, reason string) ledger.Mutation {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, "/v1/teams/"+tm.ID+"/fines", token, marchallObj(t, ledger.NewFine{Amount: amount, Reason: reason}))
		f.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var mut ledger.Mutation
		unmarshal(t, rec, &mut)
		return mut
	}

	late := addFine(dc, 20, "late to the opening")
	assert.Equal(t, int64(80), late.Balance)
	require.NotNil(t, late.Fine)
	assert.Equal(t, tm.ID, late.Fine.TeamID)

	noise := addFine(fnr, 30, "noise after curfew")
	assert.Equal(t, int64(50), noise.Balance)

	// dc may flag fines but not reverse them
	req, rec := newAuthRequest(http.MethodDelete, "/v1/fines/"+late.Fine.ID, dc)
	f.serve(req, rec)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req, rec = newAuthRequest(http.MethodDelete, "/v1/fines/"+late.Fine.ID, fnr)
	f.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var mut ledger.Mutation
	unmarshal(t, rec, &mut)
	assert.Equal(t, int64(70), mut.Balance)
	assert.Equal(t, 1, mut.Removed)

	req, rec = newAuthRequest(http.MethodGet, "/v1/teams/"+tm.ID+"/fines", getToken(t, testutil.Delegate(tm)))
	f.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var fines []ledger.Fine
	unmarshal(t, rec, &fines)
	require.Len(t, fines, 1)
	assert.Equal(t, noise.Fine.ID, fines[0].ID)

	req, rec = newAuthRequest(http.MethodDelete, "/v1/teams/"+tm.ID+"/fines?confirm=true", fnr)
	f.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	mut = ledger.Mutation{}
	unmarshal(t, rec, &mut)
	assert.Equal(t, int64(100), mut.Balance)

	stored, err := f.teams.GetTeam(req.Context(), tm.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.CurrentBalance)
}

func TestLedgerGating(t *testing.T) {
	f := setup(t)
	tm := testutil.CreateTeam(t, f.teams, "Alpha", 100)
	other := testutil.CreateTeam(t, f.teams, "Beta", 100)
	fine := testutil.CreateFine(t, f.fines, tm.ID, 10, "late")

	events := getToken(t, testutil.Actor(policy.RoleEvents))
	delegate := getToken(t, testutil.Delegate(tm))
	fnr := getToken(t, testutil.Actor(policy.RoleFnR))
	body := marchallObj(t, ledger.NewFine{Amount: 10, Reason: "late"})

	runHTTPTests(t, f, []httpTest{
		{name: "events add", method: http.MethodPost, path: "/v1/teams/" + tm.ID + "/fines", body: body, token: events, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "delegate add", method: http.MethodPost, path: "/v1/teams/" + tm.ID + "/fines", body: body, token: delegate, wantCode: http.StatusForbidden},
		{name: "events list", path: "/v1/teams/" + tm.ID + "/fines", token: events, wantCode: http.StatusForbidden},
		{name: "delegate lists another team", path: "/v1/teams/" + other.ID + "/fines", token: delegate, wantCode: http.StatusForbidden},
		{name: "delegate delete", method: http.MethodDelete, path: "/v1/fines/" + fine.ID, token: delegate, wantCode: http.StatusForbidden},
		{name: "delegate recalc", method: http.MethodPost, path: "/v1/teams/" + tm.ID + "/balance/recalc", token: delegate, wantCode: http.StatusForbidden},
		{name: "empty list", path: "/v1/teams/" + other.ID + "/fines", token: fnr, wantCode: http.StatusOK, wantData: []byte(`[]`)},
	})

	stored, err := f.teams.GetTeam(context.Background(), tm.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.CurrentBalance, "nothing was written")
}

func TestLedgerErrors(t *testing.T) {
	f := setup(t)
	tm := testutil.CreateTeam(t, f.teams, "Alpha", 100)
	fnr := getToken(t, testutil.Actor(policy.RoleFnR))

	runHTTPTests(t, f, []httpTest{
		{
			name:     "zero amount",
			method:   http.MethodPost,
			path:     "/v1/teams/" + tm.ID + "/fines",
			body:     marchallObj(t, ledger.NewFine{Amount: 0, Reason: "late"}),
			token:    fnr,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"amount":"` + ledger.ErrInvalidAmount.Error() + `"}`),
		},
		{
			name:     "blank reason",
			method:   http.MethodPost,
			path:     "/v1/teams/" + tm.ID + "/fines",
			body:     marchallObj(t, ledger.NewFine{Amount: 10, Reason: "   "}),
			token:    fnr,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"reason":"` + ledger.ErrInvalidReason.Error() + `"}`),
		},
		{
			name:     "unknown team",
			method:   http.MethodPost,
			path:     "/v1/teams/c0ffee00-0000-4000-8000-000000000000/fines",
			body:     marchallObj(t, ledger.NewFine{Amount: 10, Reason: "late"}),
			token:    fnr,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: team.ErrNotFound.Error()}),
		},
		{
			name:     "unknown fine",
			method:   http.MethodDelete,
			path:     "/v1/fines/c0ffee00-0000-4000-8000-000000000000",
			token:    fnr,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: ledger.ErrFineNotFound.Error()}),
		},
		{
			name:     "wipe without confirm",
			method:   http.MethodDelete,
			path:     "/v1/teams/" + tm.ID + "/fines",
			token:    fnr,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "wipe with confirm=false",
			method:   http.MethodDelete,
			path:     "/v1/teams/" + tm.ID + "/fines?confirm=false",
			token:    fnr,
			wantCode: http.StatusBadRequest,
		},
	})
}

func TestLedgerBalanceSyncFailed(t *testing.T) {
	f := setup(t)
	tm := testutil.CreateTeam(t, f.teams, "Alpha", 100)
	fnr := getToken(t, testutil.Actor(policy.RoleFnR))

	f.fines.failRecalc = true
	req, rec := newAuthRequest(http.MethodPost, "/v1/teams/"+tm.ID+"/fines", fnr, marchallObj(t, ledger.NewFine{Amount: 25, Reason: "late"}))
	f.serve(req, rec)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp syncResp
	unmarshal(t, rec, &resp)
	assert.Equal(t, ledger.ErrBalanceSyncFailed.Error(), resp.Error)
	assert.Equal(t, tm.ID, resp.TeamID)
	require.NotNil(t, resp.Fine)
	assert.Equal(t, int64(25), resp.Fine.Amount)
	assert.Equal(t, "/v1/teams/"+tm.ID+"/balance/recalc", resp.Retry)

	// the fine is stored, the balance is stale
	stored, err := f.teams.GetTeam(req.Context(), tm.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.CurrentBalance)

	f.fines.failRecalc = false
	req, rec = newAuthRequest(http.MethodPost, resp.Retry, fnr)
	f.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var mut ledger.Mutation
	unmarshal(t, rec, &mut)
	assert.Equal(t, int64(75), mut.Balance)

	// recomputing again changes nothing
	req, rec = newAuthRequest(http.MethodPost, resp.Retry, getToken(t, testutil.Actor(policy.RoleDC)))
	f.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	mut = ledger.Mutation{}
	unmarshal(t, rec, &mut)
	assert.Equal(t, int64(75), mut.Balance)
}

func TestLedgerStorageUnavailable(t *testing.T) {
	f := setup(t)
	tm := testutil.CreateTeam(t, f.teams, "Alpha", 100)
	fnr := getToken(t, testutil.Actor(policy.RoleFnR))

	f.db.SetUnavailable(true)
	runHTTPTests(t, f, []httpTest{
		{
			name:     "add",
			method:   http.MethodPost,
			path:     "/v1/teams/" + tm.ID + "/fines",
			body:     marchallObj(t, ledger.NewFine{Amount: 10, Reason: "late"}),
			token:    fnr,
			wantCode: http.StatusServiceUnavailable,
			wantData: marchallObj(t, httpErr{Error: "storage unavailable"}),
		},
		{name: "list", path: "/v1/teams/" + tm.ID + "/fines", token: fnr, wantCode: http.StatusServiceUnavailable},
		{name: "team", path: "/v1/teams/" + tm.ID, token: fnr, wantCode: http.StatusServiceUnavailable},
	})

	f.db.SetUnavailable(false)
	fines, err := f.fines.QueryFines(context.Background(), tm.ID)
	require.NoError(t, err)
	assert.Empty(t, fines)
}
