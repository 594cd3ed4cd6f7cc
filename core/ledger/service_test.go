package ledger_test

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/ledger"
	"github.com/yles/portal/core/policy"
	"github.com/yles/portal/core/team"
	inmemdb "github.com/yles/portal/storage/database/inmem"
	testutil "github.com/yles/portal/tests"
)

type testLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *testLogger) Debug(string, ...interface{}) {}
func (l *testLogger) Info(string, ...interface{})  {}
func (l *testLogger) Warn(string, ...interface{})  {}
func (l *testLogger) Fatal(string, ...interface{}) {}
func (l *testLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

type testRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *testRecorder) RecordLedgerMutation(op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[op+"/"+outcome]++
}

func (r *testRecorder) count(op, outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[op+"/"+outcome]
}

// flakyRepository fails every balance recompute while failRecalc is set.
type flakyRepository struct {
	ledger.Repository
	failRecalc bool
}

func (repo *flakyRepository) RecalcBalance(ctx context.Context, teamID string) (int64, error) {
	if repo.failRecalc {
		return 0, core.ErrStorageUnavailable
	}
	return repo.Repository.RecalcBalance(ctx, teamID)
}

type fixture struct {
	db       *inmemdb.DB
	teams    team.Repository
	repo     *flakyRepository
	logger   *testLogger
	recorder *testRecorder
	svc      *ledger.Service
}

func setup() *fixture {
	db := inmemdb.Open()
	f := &fixture{
		db:       db,
		teams:    inmemdb.NewTeamRepository(db),
		repo:     &flakyRepository{Repository: inmemdb.NewLedgerRepository(db)},
		logger:   &testLogger{},
		recorder: &testRecorder{},
	}
	f.svc = ledger.NewService(f.repo, f.teams, f.logger, f.recorder)
	return f
}

func (f *fixture) balance(t *testing.T, teamID string) int64 {
	tm, err := f.teams.GetTeam(context.Background(), teamID)
	require.NoError(t, err)
	return tm.CurrentBalance
}

func TestService_Scenario(t *testing.T) {
	f := setup()
	ctx := context.Background()
	admin := testutil.Actor(policy.RoleAdmin)
	tm := testutil.CreateTeam(t, f.teams, "Alpha", 100)

	mut, err := f.svc.AddFine(ctx, admin, tm.ID, ledger.NewFine{Amount: 20, Reason: "late"})
	require.NoError(t, err)
	assert.Equal(t, int64(80), mut.Balance)
	require.NotNil(t, mut.Fine)
	fineA := *mut.Fine
	assert.Equal(t, admin.ID, fineA.IssuerID)

	mut, err = f.svc.AddFine(ctx, admin, tm.ID, ledger.NewFine{Amount: 30, Reason: "  noise  "})
	require.NoError(t, err)
	assert.Equal(t, int64(50), mut.Balance)
	assert.Equal(t, "noise", mut.Fine.Reason)

	mut, err = f.svc.DeleteFine(ctx, admin, fineA.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70), mut.Balance)
	assert.Equal(t, 1, mut.Removed)

	mut, err = f.svc.WipeFines(ctx, admin, tm.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), mut.Balance)
	assert.Equal(t, 1, mut.Removed)

	fines, err := f.svc.ListFines(ctx, admin, tm.ID)
	require.NoError(t, err)
	assert.Empty(t, fines)
	assert.Equal(t, int64(100), f.balance(t, tm.ID))
	assert.Equal(t, 2, f.recorder.count(ledger.OpAddFine, ledger.OutcomeOK))
}

func TestService_AddFine(t *testing.T) {
	f := setup()
	ctx := context.Background()
	tm := testutil.CreateTeam(t, f.teams, "Alpha", 100)
	other := testutil.CreateTeam(t, f.teams, "Beta", 100)

	tests := []struct {
		name    string
		actor   policy.Actor
		teamID  string
		fine    ledger.NewFine
		wantErr error
	}{
		{name: "events", actor: testutil.Actor(policy.RoleEvents), teamID: tm.ID, fine: ledger.NewFine{Amount: 10, Reason: "x"}, wantErr: core.ErrForbidden},
		{name: "delegate own team", actor: testutil.Delegate(tm), teamID: tm.ID, fine: ledger.NewFine{Amount: 10, Reason: "x"}, wantErr: core.ErrForbidden},
		{name: "unknown role", actor: testutil.Actor("janitor"), teamID: tm.ID, fine: ledger.NewFine{Amount: 10, Reason: "x"}, wantErr: core.ErrForbidden},
		{name: "zero amount", actor: testutil.Actor(policy.RoleFnR), teamID: tm.ID, fine: ledger.NewFine{Amount: 0, Reason: "x"}, wantErr: ledger.ErrInvalidAmount},
		{name: "negative amount", actor: testutil.Actor(policy.RoleFnR), teamID: tm.ID, fine: ledger.NewFine{Amount: -5, Reason: "x"}, wantErr: ledger.ErrInvalidAmount},
		{name: "amount above ceiling", actor: testutil.Actor(policy.RoleAdmin), teamID: tm.ID, fine: ledger.NewFine{Amount: ledger.MaxAmount + 1, Reason: "x"}, wantErr: ledger.ErrInvalidAmount},
		{name: "max int64 amount", actor: testutil.Actor(policy.RoleAdmin), teamID: tm.ID, fine: ledger.NewFine{Amount: math.MaxInt64, Reason: "x"}, wantErr: ledger.ErrInvalidAmount},
		{name: "blank reason", actor: testutil.Actor(policy.RoleDC), teamID: tm.ID, fine: ledger.NewFine{Amount: 5, Reason: " \t"}, wantErr: ledger.ErrInvalidReason},
		{name: "unknown team", actor: testutil.Actor(policy.RoleAdmin), teamID: "nope", fine: ledger.NewFine{Amount: 5, Reason: "x"}, wantErr: team.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mut, err := f.svc.AddFine(ctx, tt.actor, tt.teamID, tt.fine)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Nil(t, mut.Fine)
		})
	}

	// nothing was written
	for _, id := range []string{tm.ID, other.ID} {
		fines, err := f.repo.QueryFines(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, fines)
		assert.Equal(t, int64(100), f.balance(t, id))
	}

	t.Run("dc may flag fines", func(t *testing.T) {
		mut, err := f.svc.AddFine(ctx, testutil.Actor(policy.RoleDC), other.ID, ledger.NewFine{Amount: 15, Reason: "litter"})
		require.NoError(t, err)
		assert.Equal(t, int64(85), mut.Balance)
	})
}

func TestService_AddFine_LargeAmounts(t *testing.T) {
	f := setup()
	ctx := context.Background()
	admin := testutil.Actor(policy.RoleAdmin)
	tm := testutil.CreateTeam(t, f.teams, "Alpha", 100)

	for _, reason := range []string{"x", "y"} {
		_, err := f.svc.AddFine(ctx, admin, tm.ID, ledger.NewFine{Amount: ledger.MaxAmount, Reason: reason})
		require.NoError(t, err)
	}
	assert.Equal(t, 100-2*ledger.MaxAmount, f.balance(t, tm.ID))

	for _, reason := range []string{"x", "y"} {
		_, err := f.svc.AddFine(ctx, admin, tm.ID, ledger.NewFine{Amount: math.MaxInt64, Reason: reason})
		assert.True(t, errors.Is(err, ledger.ErrInvalidAmount), "got %v", err)
	}
	fines, err := f.repo.QueryFines(ctx, tm.ID)
	require.NoError(t, err)
	assert.Len(t, fines, 2)
	assert.Equal(t, 100-2*ledger.MaxAmount, f.balance(t, tm.ID))
}

func TestService_DeleteFine(t *testing.T) {
	f := setup()
	ctx := context.Background()
	admin := testutil.Actor(policy.RoleAdmin)
	tm := testutil.CreateTeam(t, f.teams, "Alpha", 100)

	mut, err := f.svc.AddFine(ctx, admin, tm.ID, ledger.NewFine{Amount: 25, Reason: "late"})
	require.NoError(t, err)
	fine := *mut.Fine

	tests := []struct {
		name    string
		actor   policy.Actor
		fineID  string
		wantErr error
	}{
		{name: "dc", actor: testutil.Actor(policy.RoleDC), fineID: fine.ID, wantErr: core.ErrForbidden},
		{name: "events", actor: testutil.Actor(policy.RoleEvents), fineID: fine.ID, wantErr: core.ErrForbidden},
		{name: "delegate", actor: testutil.Delegate(tm), fineID: fine.ID, wantErr: core.ErrForbidden},
		{name: "forbidden before lookup", actor: testutil.Actor(policy.RoleDC), fineID: "nope", wantErr: core.ErrForbidden},
		{name: "unknown fine", actor: testutil.Actor(policy.RoleFnR), fineID: "nope", wantErr: ledger.ErrFineNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.DeleteFine(ctx, tt.actor, tt.fineID)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
	assert.Equal(t, int64(75), f.balance(t, tm.ID))

	mut, err = f.svc.DeleteFine(ctx, testutil.Actor(policy.RoleFnR), fine.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), mut.Balance)
	assert.Equal(t, tm.ID, mut.TeamID)
}

func TestService_WipeFines(t *testing.T) {
	f := setup()
	ctx := context.Background()
	tm := testutil.CreateTeam(t, f.teams, "Alpha", 500)
	dc := testutil.Actor(policy.RoleDC)
	for _, amount := range []int64{10, 20, 30} {
		_, err := f.svc.AddFine(ctx, dc, tm.ID, ledger.NewFine{Amount: amount, Reason: "x"})
		require.NoError(t, err)
	}

	_, err := f.svc.WipeFines(ctx, dc, tm.ID)
	assert.True(t, errors.Is(err, core.ErrForbidden))
	assert.Equal(t, int64(440), f.balance(t, tm.ID))

	mut, err := f.svc.WipeFines(ctx, testutil.Actor(policy.RoleFnR), tm.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, mut.Removed)
	assert.Equal(t, int64(500), mut.Balance)

	// wiping an empty ledger is fine
	mut, err = f.svc.WipeFines(ctx, testutil.Actor(policy.RoleAdmin), tm.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, mut.Removed)
	assert.Equal(t, int64(500), mut.Balance)
}

func TestService_ListFines(t *testing.T) {
	f := setup()
	ctx := context.Background()
	tm := testutil.CreateTeam(t, f.teams, "Alpha", 100)
	other := testutil.CreateTeam(t, f.teams, "Beta", 100)
	admin := testutil.Actor(policy.RoleAdmin)

	var ids []string
	for _, reason := range []string{"first", "second", "third"} {
		mut, err := f.svc.AddFine(ctx, admin, tm.ID, ledger.NewFine{Amount: 1, Reason: reason})
		require.NoError(t, err)
		ids = append(ids, mut.Fine.ID)
	}

	t.Run("newest first", func(t *testing.T) {
		fines, err := f.svc.ListFines(ctx, testutil.Delegate(tm), tm.ID)
		require.NoError(t, err)
		require.Len(t, fines, 3)
		assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{fines[0].ID, fines[1].ID, fines[2].ID})
	})

	tests := []struct {
		name    string
		actor   policy.Actor
		wantErr error
	}{
		{name: "events", actor: testutil.Actor(policy.RoleEvents), wantErr: core.ErrForbidden},
		{name: "other delegate", actor: testutil.Delegate(other), wantErr: core.ErrForbidden},
		{name: "dc", actor: testutil.Actor(policy.RoleDC)},
		{name: "fnr", actor: testutil.Actor(policy.RoleFnR)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ListFines(ctx, tt.actor, tm.ID)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_BalanceSyncFailed(t *testing.T) {
	f := setup()
	ctx := context.Background()
	admin := testutil.Actor(policy.RoleAdmin)
	tm := testutil.CreateTeam(t, f.teams, "Alpha", 100)

	f.repo.failRecalc = true
	mut, err := f.svc.AddFine(ctx, admin, tm.ID, ledger.NewFine{Amount: 40, Reason: "late"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrBalanceSyncFailed))
	assert.True(t, errors.Is(err, core.ErrStorageUnavailable))

	var syncErr *ledger.BalanceSyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, ledger.OpAddFine, syncErr.Op)
	assert.Equal(t, tm.ID, syncErr.TeamID)

	// the fine is durable and returned, the balance is stale
	require.NotNil(t, mut.Fine)
	fines, err := f.repo.QueryFines(ctx, tm.ID)
	require.NoError(t, err)
	require.Len(t, fines, 1)
	assert.Equal(t, mut.Fine.ID, fines[0].ID)
	assert.Equal(t, int64(100), f.balance(t, tm.ID))
	assert.Len(t, f.logger.errors, 1)
	assert.Equal(t, 1, f.recorder.count(ledger.OpAddFine, ledger.OutcomeSyncFailed))

	// retry with a recompute alone
	_, err = f.svc.Recalc(ctx, testutil.Actor(policy.RoleEvents), tm.ID)
	assert.True(t, errors.Is(err, core.ErrForbidden))

	f.repo.failRecalc = false
	mut, err = f.svc.Recalc(ctx, testutil.Actor(policy.RoleDC), tm.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), mut.Balance)
	assert.Equal(t, int64(60), f.balance(t, tm.ID))
}

func TestService_StorageUnavailable(t *testing.T) {
	f := setup()
	ctx := context.Background()
	tm := testutil.CreateTeam(t, f.teams, "Alpha", 100)

	f.db.SetUnavailable(true)
	_, err := f.svc.AddFine(ctx, testutil.Actor(policy.RoleAdmin), tm.ID, ledger.NewFine{Amount: 10, Reason: "x"})
	assert.True(t, errors.Is(err, core.ErrStorageUnavailable))
	assert.False(t, errors.Is(err, ledger.ErrBalanceSyncFailed))
	f.db.SetUnavailable(false)

	assert.Equal(t, int64(100), f.balance(t, tm.ID))
}

func TestService_ConcurrentMutations(t *testing.T) {
	f := setup()
	ctx := context.Background()
	tm := testutil.CreateTeam(t, f.teams, "Alpha", 10000)
	admins := []policy.Actor{testutil.Actor(policy.RoleAdmin), testutil.Actor(policy.RoleFnR), testutil.Actor(policy.RoleDC)}

	const workers, perWorker = 8, 25
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		added []ledger.Fine
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			actor := admins[w%len(admins)]
			for i := 0; i < perWorker; i++ {
				mut, err := f.svc.AddFine(ctx, actor, tm.ID, ledger.NewFine{Amount: int64(i%7 + 1), Reason: "load"})
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				added = append(added, *mut.Fine)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	// delete half of them concurrently
	fnr := testutil.Actor(policy.RoleFnR)
	for i, fine := range added {
		if i%2 == 1 {
			continue
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.DeleteFine(ctx, fnr, id)
			assert.NoError(t, err)
		}(fine.ID)
	}
	wg.Wait()

	fines, err := f.repo.QueryFines(ctx, tm.ID)
	require.NoError(t, err)
	var sum int64
	for _, fine := range fines {
		sum += fine.Amount
	}
	assert.Len(t, fines, workers*perWorker/2)
	assert.Equal(t, int64(10000)-sum, f.balance(t, tm.ID))
}
