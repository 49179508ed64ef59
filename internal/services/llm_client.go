package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	types "github.com/yungbote/chatstream-backend/internal/domain"
	"github.com/yungbote/chatstream-backend/internal/observability"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
	"github.com/yungbote/chatstream-backend/internal/platform/zhipu"
)

// LLMStreamer streams one answer from the remote model. onDelta is called for every fragment in
// receipt order; the returned string is their concatenation.
type LLMStreamer interface {
	StreamChat(ctx context.Context, history []types.ContextMessage, question string, onDelta func(delta string)) (string, error)
	Model() string
}

type zhipuStreamer struct {
	client  *zhipu.Client
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewZhipuStreamer(baseLog *logger.Logger, client *zhipu.Client, metrics *observability.Metrics) LLMStreamer {
	s := &zhipuStreamer{
		client:  client,
		log:     baseLog.With("service", "LLMStreamer"),
		metrics: metrics,
	}
	model := client.Model()
	client.OnParseError(func(payload string, err error) {
		s.metrics.IncLLMParseError(model)
	})
	return s
}

func (s *zhipuStreamer) Model() string { return s.client.Model() }

func (s *zhipuStreamer) StreamChat(ctx context.Context, history []types.ContextMessage, question string, onDelta func(delta string)) (string, error) {
	msgs := make([]zhipu.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, zhipu.Message{Role: m.Role, Content: m.Content})
	}

	start := time.Now()
	full, err := s.client.StreamChat(ctx, msgs, question, onDelta)
	s.metrics.ObserveLLMRequest(s.client.Model(), llmStatus(err), time.Since(start))
	if err != nil {
		s.log.Warn("upstream stream failed", append(logFields(ctx), "error", err, "answer_bytes", len(full))...)
	}
	return full, err
}

func llmStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var he *zhipu.HTTPError
	switch {
	case errors.As(err, &he):
		return strconv.Itoa(he.StatusCode)
	case errors.Is(err, zhipu.ErrReadTimeout):
		return "timeout"
	default:
		return "error"
	}
}
