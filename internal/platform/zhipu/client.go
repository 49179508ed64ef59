package zhipu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

const (
	DefaultBaseURL             = "https://open.bigmodel.cn/api/paas/v4"
	DefaultChatCompletionsPath = "/chat/completions"
	DefaultModel               = "glm-4"
)

type Config struct {
	BaseURL             string
	ChatCompletionsPath string
	APIKey              string
	Model               string

	// ConnectTimeout bounds dialing and the TLS handshake.
	ConnectTimeout time.Duration
	// ReadTimeout bounds the wait for response headers and every gap between body reads.
	ReadTimeout time.Duration
	// TokenTTL is the lifetime of each signed bearer token.
	TokenTTL time.Duration
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client struct {
	baseURL  string
	chatPath string
	model    string
	cred     credential

	readTimeout time.Duration
	tokenTTL    time.Duration

	httpClient *http.Client
	log        *logger.Logger
	now        func() time.Time

	parseErrors  atomic.Int64
	onParseError func(payload string, err error)
}

func New(cfg Config, log *logger.Logger) (*Client, error) {
	cred, err := parseAPIKey(cfg.APIKey)
	if err != nil {
		return nil, err
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	chatPath := strings.TrimSpace(cfg.ChatCompletionsPath)
	if chatPath == "" {
		chatPath = DefaultChatCompletionsPath
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Minute
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	if log == nil {
		log = logger.NewNop()
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		baseURL:     baseURL,
		chatPath:    chatPath,
		model:       model,
		cred:        cred,
		readTimeout: readTimeout,
		tokenTTL:    tokenTTL,
		httpClient:  &http.Client{Transport: tr},
		log:         log.With("client", "ZhipuClient"),
		now:         time.Now,
	}, nil
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(cfg Config, log *logger.Logger, httpClient *http.Client) (*Client, error) {
	c, err := New(cfg, log)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c, nil
}

// OnParseError registers a hook invoked for every event payload that could not be decoded.
// Must be called before the client is shared.
func (c *Client) OnParseError(fn func(payload string, err error)) {
	c.onParseError = fn
}

// ParseErrors reports how many event payloads were skipped because they failed to decode.
func (c *Client) ParseErrors() int64 {
	return c.parseErrors.Load()
}

func (c *Client) Model() string { return c.model }

type chatCompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// StreamChat sends history plus the new question and streams the answer. onDelta receives each
// decoded fragment in receipt order; the return value is the concatenation of all fragments.
// The call completes on EOF or on the [DONE] sentinel.
func (c *Client) StreamChat(ctx context.Context, history []Message, question string, onDelta func(delta string)) (string, error) {
	ctx, span := otel.Tracer("chatstream/zhipu").Start(ctx, "zhipu.StreamChat")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.context_messages", len(history)),
	)

	full, err := c.streamChat(ctx, history, question, onDelta)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Int("llm.answer_bytes", len(full)))
	return full, err
}

func (c *Client) streamChat(ctx context.Context, history []Message, question string, onDelta func(delta string)) (string, error) {
	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: question})

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(chatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	}); err != nil {
		return "", err
	}

	token, err := c.cred.sign(c.now(), c.tokenTTL)
	if err != nil {
		return "", fmt.Errorf("sign upstream token: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.chatPath, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		c.log.Warn("upstream rejected chat request", "status", resp.StatusCode)
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	body := newIdleTimeoutReader(resp.Body, c.readTimeout, cancel)
	defer body.stop()

	var full strings.Builder
	err = readDataLines(body, func(payload string) error {
		delta, ok, derr := decodeDelta(payload)
		if derr != nil {
			c.parseErrors.Add(1)
			c.log.Debug("skipping undecodable stream event", "error", derr, "payload_bytes", len(payload))
			if c.onParseError != nil {
				c.onParseError(payload, derr)
			}
			return nil
		}
		if !ok || delta == "" {
			return nil
		}
		full.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
		return nil
	})
	if err != nil {
		if body.timedOut() {
			return full.String(), ErrReadTimeout
		}
		return full.String(), err
	}
	return full.String(), nil
}

// idleTimeoutReader cancels the request when no bytes arrive for the configured duration.
type idleTimeoutReader struct {
	r     io.Reader
	d     time.Duration
	timer *time.Timer
	fired atomic.Bool
	once  sync.Once
}

func newIdleTimeoutReader(r io.Reader, d time.Duration, cancel context.CancelFunc) *idleTimeoutReader {
	ir := &idleTimeoutReader{r: r, d: d}
	ir.timer = time.AfterFunc(d, func() {
		ir.fired.Store(true)
		cancel()
	})
	return ir
}

func (ir *idleTimeoutReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset(ir.d)
	}
	return n, err
}

func (ir *idleTimeoutReader) timedOut() bool { return ir.fired.Load() }

func (ir *idleTimeoutReader) stop() {
	ir.once.Do(func() { ir.timer.Stop() })
}
