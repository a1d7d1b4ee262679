package domain

import "context"

// TxManager runs fn as one unit of work. Repositories called with the ctx passed to fn join
// the same transaction; any error rolls every change back.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
