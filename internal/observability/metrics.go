package observability

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	chatRequests   *CounterVec
	cacheLookups   *CounterVec
	contextTurns   *HistogramVec
	turnsRecorded  *CounterVec
	llmRequests    *CounterVec
	llmLatency     *HistogramVec
	llmParseErrors *CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process metrics, or nil when Init was never called. Every method is
// safe on a nil receiver.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("metrics initialized")
		}
	})
	return instance
}

// NewMetrics builds an unregistered metrics set. Used directly by tests.
func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("chatstream_api_requests_total", "HTTP requests by method, route and status.", "method", "route", "status"),
		apiLatency:  NewHistogramVec("chatstream_api_request_duration_seconds", "HTTP request latency.", nil, "method", "route"),
		apiInflight: NewGauge("chatstream_api_inflight_requests", "HTTP requests currently being served."),

		chatRequests:  NewCounterVec("chatstream_chat_requests_total", "Streamed chat requests by outcome.", "outcome"),
		cacheLookups:  NewCounterVec("chatstream_answer_cache_lookups_total", "Answer cache lookups by result.", "result"),
		contextTurns:  NewHistogramVec("chatstream_context_turns", "Prior turns included in the model context.", []float64{0, 1, 2, 4, 8, 12, 16, 20}),
		turnsRecorded: NewCounterVec("chatstream_turns_recorded_total", "Persisted turns by answer source.", "source"),

		llmRequests:    NewCounterVec("chatstream_llm_requests_total", "Upstream model calls by model and status.", "model", "status"),
		llmLatency:     NewHistogramVec("chatstream_llm_stream_duration_seconds", "Upstream model stream duration.", []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300}, "model"),
		llmParseErrors: NewCounterVec("chatstream_llm_stream_parse_errors_total", "Upstream stream events skipped because they could not be decoded.", "model"),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, s := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.chatRequests, m.cacheLookups, m.contextTurns, m.turnsRecorded,
		m.llmRequests, m.llmLatency, m.llmParseErrors,
	} {
		if err := s.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

// IncChatRequest counts one streamed request by outcome: completed, failed or rejected.
func (m *Metrics) IncChatRequest(outcome string) {
	if m == nil {
		return
	}
	m.chatRequests.Inc(outcome)
}

func (m *Metrics) IncCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.Inc("hit")
		return
	}
	m.cacheLookups.Inc("miss")
}

func (m *Metrics) ObserveContextTurns(n int) {
	if m == nil {
		return
	}
	m.contextTurns.Observe(float64(n))
}

func (m *Metrics) IncTurnRecorded(source string) {
	if m == nil {
		return
	}
	m.turnsRecorded.Inc(source)
}

func (m *Metrics) ObserveLLMRequest(model, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.Inc(model, status)
	m.llmLatency.Observe(dur.Seconds(), model)
}

func (m *Metrics) IncLLMParseError(model string) {
	if m == nil {
		return
	}
	m.llmParseErrors.Inc(model)
}
