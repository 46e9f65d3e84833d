// Package authz holds the reusable authorization predicates shared by the
// intent ledger and the execution router.
package authz

import (
	"errors"
	"fmt"

	"github.com/gabikreal1/AlgoFlow/pkg/codec"
)

var (
	// ErrNotAuthorized is returned when the caller fails an actor check.
	ErrNotAuthorized = errors.New("authz: caller not authorized")
	// ErrFeeOutOfBounds is returned for fee rates above the allowed maximum.
	ErrFeeOutOfBounds = errors.New("authz: fee basis points out of bounds")
)

// RequireOwner enforces the strict owner-only policy.
func RequireOwner(sender, owner codec.Address) error {
	if sender != owner {
		return fmt.Errorf("%w: sender %s is not owner %s", ErrNotAuthorized, sender, owner)
	}
	return nil
}

// RequireActor enforces the owner-or-keeper-or-executor policy. The
// executor address only counts if a non-zero executor app id was configured
// and its address resolved; callers pass the zero address otherwise.
func RequireActor(sender, owner, keeper, executor codec.Address) error {
	if sender == owner || sender == keeper {
		return nil
	}
	if !executor.IsZero() && sender == executor {
		return nil
	}
	return fmt.Errorf("%w: sender %s is neither owner, keeper, nor executor", ErrNotAuthorized, sender)
}

// CheckFeeBounds validates a basis-point fee rate against the protocol
// maximum. The maximum is itself below the fee scale, so a valid rate can
// always be paid out of the collateral it applies to.
func CheckFeeBounds(feeBPS uint64) error {
	if feeBPS > codec.MaxKeeperFeeBPS {
		return fmt.Errorf("%w: %d > %d", ErrFeeOutOfBounds, feeBPS, codec.MaxKeeperFeeBPS)
	}
	return nil
}
