package ledger

import (
	"fmt"

	"github.com/pkg/errors"
)

// MaxAmount is the largest single fine, in minor units. It keeps any realistic fine set summable in an int64.
const MaxAmount int64 = 1_000_000_000_000

var (
	// errors
	ErrInvalidAmount     = errors.Errorf("amount must be greater than zero and at most %d", MaxAmount)
	ErrInvalidReason     = errors.New("reason cannot be blank")
	ErrFineNotFound      = errors.New("fine not found")
	ErrBalanceSyncFailed = errors.New("mutation applied, balance may be stale - retry")
	ErrBalanceOutOfRange = errors.New("sum of fines exceeds the balance range")
)

// BalanceSyncError reports that a fine write succeeded but the balance recompute that follows it did not.
// The ledger is inconsistent until a recompute succeeds; recomputing is safe to repeat.
type BalanceSyncError struct {
	Op     string
	TeamID string
	Err    error
}

func (e *BalanceSyncError) Error() string {
	return fmt.Sprintf("%s (team %s): %v: %v", e.Op, e.TeamID, ErrBalanceSyncFailed, e.Err)
}

func (e *BalanceSyncError) Unwrap() error { return e.Err }

func (e *BalanceSyncError) Is(target error) bool { return target == ErrBalanceSyncFailed }
