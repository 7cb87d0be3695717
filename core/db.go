package core

import "context"

// Transactor runs fn as a single unit of work.
// The context handed to fn carries the transaction; repositories called with it join the unit,
// and any error returned by fn rolls back every write made through it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
