package store

import (
	"context"

	"paperprop/internal/model"
)

// Store persists whole account documents. Load reports found=false for an
// account that has never been saved.
type Store interface {
	Load(ctx context.Context, accountID string) (model.AccountState, bool, error)
	Save(ctx context.Context, accountID string, state model.AccountState) error
}
