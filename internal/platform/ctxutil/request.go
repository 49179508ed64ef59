package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKey struct{}

const RoleAdmin = "admin"

// RequestData is the authenticated identity attached by the auth middleware.
type RequestData struct {
	UserID uuid.UUID
	Role   string
}

func (rd *RequestData) IsAdmin() bool {
	return rd != nil && rd.Role == RoleAdmin
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}
