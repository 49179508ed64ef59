package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"

	"github.com/yungbote/chatstream-backend/internal/cache"
	"github.com/yungbote/chatstream-backend/internal/data/repos"
	types "github.com/yungbote/chatstream-backend/internal/domain"
	"github.com/yungbote/chatstream-backend/internal/jobs/worker"
	"github.com/yungbote/chatstream-backend/internal/observability"
	"github.com/yungbote/chatstream-backend/internal/pkg/dbctx"
	"github.com/yungbote/chatstream-backend/internal/platform/apierr"
	"github.com/yungbote/chatstream-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
	"github.com/yungbote/chatstream-backend/internal/sse"
)

// ChatStreamService answers one question inside a conversation as a live event stream.
type ChatStreamService interface {
	// Handle validates the request synchronously and returns at once. The answer is produced
	// on the worker pool; a rejected request yields an emitter that has already failed.
	Handle(ctx context.Context, question string, requesterID uuid.UUID, conversationID string) *sse.Emitter
}

type ChatStreamConfig struct {
	// ContextBudget is the token budget handed to the ContextBuilder.
	ContextBudget int
}

type chatStreamService struct {
	log           *logger.Logger
	conversations repos.ConversationRepo
	turns         repos.TurnRepo
	builder       ContextBuilder
	answers       cache.AnswerCache
	llm           LLMStreamer
	pool          worker.Submitter
	metrics       *observability.Metrics
	cfg           ChatStreamConfig
	now           func() time.Time
}

func NewChatStreamService(
	baseLog *logger.Logger,
	conversations repos.ConversationRepo,
	turns repos.TurnRepo,
	builder ContextBuilder,
	answers cache.AnswerCache,
	llm LLMStreamer,
	pool worker.Submitter,
	metrics *observability.Metrics,
	cfg ChatStreamConfig,
) ChatStreamService {
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = DefaultContextBudget
	}
	return &chatStreamService{
		log:           baseLog.With("service", "ChatStreamService"),
		conversations: conversations,
		turns:         turns,
		builder:       builder,
		answers:       answers,
		llm:           llm,
		pool:          pool,
		metrics:       metrics,
		cfg:           cfg,
		now:           time.Now,
	}
}

func (s *chatStreamService) Handle(ctx context.Context, question string, requesterID uuid.UUID, conversationID string) *sse.Emitter {
	conv, cerr := s.validate(ctx, question, requesterID, conversationID)
	if cerr != nil {
		s.metrics.IncChatRequest("rejected")
		if cerr.Kind == KindValidation {
			s.log.Debug("chat request rejected", append(logFields(ctx), "error", cerr)...)
		} else {
			s.log.Error("chat request lookup failed", append(logFields(ctx), "error", cerr)...)
		}
		return sse.Failed(cerr.APIError())
	}

	em := sse.NewEmitter()
	taskCtx := context.WithoutCancel(ctx)
	h := s.pool.Submit(taskCtx, "chat_answer", func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				em.Fail(apierr.New(http.StatusInternalServerError, "internal_error", fmt.Errorf("answer task panicked")))
				panic(r)
			}
		}()
		s.answer(ctx, em, conv, requesterID, question)
	})
	select {
	case <-h.Done():
		if err := h.Wait(taskCtx); errors.Is(err, worker.ErrPoolClosed) {
			s.log.Warn("answer task not accepted", append(logFields(ctx), "task", h.Name())...)
			s.metrics.IncChatRequest("rejected")
			em.Fail(apierr.New(http.StatusServiceUnavailable, "shutting_down", err))
		}
	default:
	}
	return em
}

func (s *chatStreamService) validate(ctx context.Context, question string, requesterID uuid.UUID, conversationID string) (*types.Conversation, *ChatError) {
	id, err := uuid.Parse(strings.TrimSpace(conversationID))
	if err != nil {
		return nil, validationError("parse conversation id", ErrInvalidConversation)
	}
	conv, err := s.conversations.GetByID(dbctx.New(ctx), id)
	if err != nil {
		return nil, persistenceError("load conversation", err)
	}
	if !conv.OwnedBy(requesterID) {
		return nil, validationError("check ownership", ErrInvalidConversation)
	}
	if strings.TrimSpace(question) == "" {
		return nil, validationError("check question", ErrEmptyQuestion)
	}
	return conv, nil
}

func (s *chatStreamService) answer(ctx context.Context, em *sse.Emitter, conv *types.Conversation, requesterID uuid.UUID, question string) {
	ctx, span := otel.Tracer("chatstream/services").Start(ctx, "ChatStreamService.answer")
	defer span.End()
	span.SetAttributes(attribute.String("chat.conversation_id", conv.ID.String()))

	log := s.log.With(append(logFields(ctx), "conversation_id", conv.ID)...)
	key := cache.Key(conv.ID.String(), question)

	var answerErr error
	if cached, ok := s.answers.Get(ctx, key); ok {
		s.metrics.IncCacheLookup(true)
		span.SetAttributes(attribute.Bool("chat.cache_hit", true))
		answerErr = s.answerFromCache(ctx, em, conv, requesterID, question, cached)
	} else {
		s.metrics.IncCacheLookup(false)
		span.SetAttributes(attribute.Bool("chat.cache_hit", false))
		answerErr = s.answerFromModel(ctx, em, conv, requesterID, question, key)
	}

	bookErr := s.conversations.RecordMessage(dbctx.New(ctx), conv.ID, strings.TrimSpace(question), s.now())
	if bookErr != nil {
		bookErr = persistenceError("update conversation", bookErr)
		log.Error("conversation bookkeeping failed", "error", bookErr)
	}

	termErr := answerErr
	if termErr == nil {
		termErr = bookErr
	}
	if termErr != nil {
		span.RecordError(termErr)
		span.SetStatus(codes.Error, termErr.Error())
		var ce *ChatError
		if errors.As(termErr, &ce) {
			em.Fail(ce.APIError())
		} else {
			em.Fail(termErr)
		}
		s.metrics.IncChatRequest("failed")
		return
	}
	em.Complete()
}

func (s *chatStreamService) answerFromCache(ctx context.Context, em *sse.Emitter, conv *types.Conversation, requesterID uuid.UUID, question, cached string) error {
	_ = em.Send(cached)
	if err := s.recordTurn(ctx, conv, requesterID, question, cached, datatypes.JSONMap{
		"source": types.TurnSourceCache,
	}); err != nil {
		return err
	}
	s.metrics.IncChatRequest("cache_hit")
	return nil
}

func (s *chatStreamService) answerFromModel(ctx context.Context, em *sse.Emitter, conv *types.Conversation, requesterID uuid.UUID, question, key string) error {
	history, err := s.builder.Build(ctx, conv.ID, s.cfg.ContextBudget)
	if err != nil {
		return persistenceError("build context", err)
	}
	s.metrics.ObserveContextTurns(len(history) / 2)

	x := &exchange{}
	_, err = s.llm.StreamChat(ctx, history, question, func(delta string) {
		if x.append(delta) == nil {
			_ = em.Send(delta)
		}
	})
	if err != nil {
		if x.fail(err) {
			s.log.Warn("answer stream failed", append(logFields(ctx), "partial_bytes", len(x.partial()), "error", x.failure())...)
		}
		return transportError("stream answer", err)
	}
	return s.persistAnswer(ctx, x, conv, requesterID, question, key, len(history))
}

// persistAnswer records the turn and caches the answer once the exchange completes. A second call,
// or a call on a failed exchange, loses the transition and writes nothing.
func (s *chatStreamService) persistAnswer(ctx context.Context, x *exchange, conv *types.Conversation, requesterID uuid.UUID, question, key string, contextMessages int) error {
	text, ok := x.complete()
	if !ok {
		return nil
	}
	answer := strings.TrimSpace(text)
	if answer == "" {
		s.metrics.IncChatRequest("empty")
		return nil
	}
	if err := s.recordTurn(ctx, conv, requesterID, question, answer, datatypes.JSONMap{
		"source":           types.TurnSourceModel,
		"model":            s.llm.Model(),
		"context_messages": contextMessages,
	}); err != nil {
		return err
	}
	s.answers.Put(ctx, key, answer)
	s.metrics.IncChatRequest("model")
	return nil
}

func (s *chatStreamService) recordTurn(ctx context.Context, conv *types.Conversation, requesterID uuid.UUID, question, answer string, meta datatypes.JSONMap) error {
	turn := &types.Turn{
		UserID:         requesterID,
		ConversationID: conv.ID,
		Question:       strings.TrimSpace(question),
		Answer:         answer,
		Meta:           meta,
	}
	if _, err := s.turns.Create(dbctx.New(ctx), []*types.Turn{turn}); err != nil {
		return persistenceError("record turn", err)
	}
	if src, ok := meta["source"].(string); ok {
		s.metrics.IncTurnRecorded(src)
	}
	return nil
}

func logFields(ctx context.Context) []interface{} {
	fields := ctxutil.LogFields(ctx)
	if rd := ctxutil.GetRequestData(ctx); rd != nil {
		fields = append(fields, "user_id", rd.UserID)
	}
	return fields
}
