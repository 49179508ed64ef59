package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// New returns a Context without a transaction.
func New(ctx context.Context) Context {
	return Context{Ctx: ctx}
}

// Conn returns the transaction when set, else fallback, bound to Ctx.
func (c Context) Conn(fallback *gorm.DB) *gorm.DB {
	txx := c.Tx
	if txx == nil {
		txx = fallback
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return txx.WithContext(ctx)
}
