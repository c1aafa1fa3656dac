package ports

import "context"

// Tx is the opaque transaction handle placed in the context by a UnitOfWork.
// The persistence adapter decides its concrete type.
type Tx interface{}

// UnitOfWork runs fn inside one transaction. A non-nil error from fn rolls
// everything back, so a rejected analysis or incident write leaves no trace.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func TxFromContext(ctx context.Context) Tx {
	if ctx == nil {
		return nil
	}
	return ctx.Value(txKey{})
}
