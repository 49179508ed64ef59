package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/chatstream-backend/internal/platform/apierr"
	"github.com/yungbote/chatstream-backend/internal/platform/zhipu"
)

type ChatErrorKind string

const (
	KindValidation  ChatErrorKind = "validation"
	KindTransport   ChatErrorKind = "transport"
	KindPersistence ChatErrorKind = "persistence"
)

var (
	ErrInvalidConversation = errors.New("conversation not found or not owned by requester")
	ErrEmptyQuestion       = errors.New("question must not be blank")
	ErrUnauthenticated     = errors.New("missing request identity")
	ErrForbidden           = errors.New("forbidden")
)

// ChatError classifies a failure of the answer pipeline.
type ChatError struct {
	Kind ChatErrorKind
	Op   string
	Err  error
}

func (e *ChatError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *ChatError) Unwrap() error { return e.Err }

// APIError maps the failure onto an HTTP status and a stable code.
func (e *ChatError) APIError() *apierr.Error {
	switch e.Kind {
	case KindValidation:
		if errors.Is(e.Err, ErrEmptyQuestion) {
			return apierr.New(http.StatusBadRequest, "invalid_question", e)
		}
		return apierr.New(http.StatusNotFound, "invalid_conversation", e)
	case KindTransport:
		if errors.Is(e.Err, zhipu.ErrReadTimeout) {
			return apierr.New(http.StatusGatewayTimeout, "llm_timeout", e)
		}
		return apierr.New(http.StatusBadGateway, "llm_unavailable", e)
	default:
		return apierr.New(http.StatusInternalServerError, "persistence_failed", e)
	}
}

func validationError(op string, err error) *ChatError {
	return &ChatError{Kind: KindValidation, Op: op, Err: err}
}

func transportError(op string, err error) *ChatError {
	return &ChatError{Kind: KindTransport, Op: op, Err: err}
}

func persistenceError(op string, err error) *ChatError {
	return &ChatError{Kind: KindPersistence, Op: op, Err: err}
}

// IsValidation reports whether err is a ChatError of kind validation.
func IsValidation(err error) bool {
	var ce *ChatError
	return errors.As(err, &ce) && ce.Kind == KindValidation
}
