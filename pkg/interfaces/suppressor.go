package interfaces

import (
	"context"

	"gigrelay/pkg/types"
)

// Suppressor decides whether a candidate message is a resubmission that must
// not be persisted or routed. Pure predicate over the store; no mutation.
type Suppressor interface {
	IsDuplicate(ctx context.Context, candidate *types.StoredMessage) (bool, error)
}
