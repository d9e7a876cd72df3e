package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/legis-analyzer/internal/model"
	"github.com/sells-group/legis-analyzer/internal/resilience"
	"github.com/sells-group/legis-analyzer/pkg/anthropic"
)

// CallResult is the outcome of one structured model call. Empty means the
// model produced no parsable content; callers must treat it as "no data",
// not as failure. Validated reports whether the extracted JSON matched the
// expected shape exactly; when false the data is best-effort.
type CallResult struct {
	Analysis  model.Analysis
	Raw       json.RawMessage
	Validated bool
	Empty     bool
	Usage     anthropic.TokenUsage
}

// StructuredClientConfig tunes a StructuredClient.
type StructuredClientConfig struct {
	Model           string
	MaxRetries      int
	RetryBaseDelay  time.Duration
	MaxOutputTokens int64
	Temperature     float64
	// RequestsPerMinute, when > 0, enables client-side rate limiting.
	RequestsPerMinute int
	// ThinkingBudgetTokens, when > 0, requests extended thinking with that
	// token budget on every call; it takes precedence over Temperature.
	ThinkingBudgetTokens int64
	// CircuitFailureThreshold and CircuitResetSeconds tune the circuit
	// breaker; zero values take the resilience defaults.
	CircuitFailureThreshold int
	CircuitResetSeconds     int
}

// StructuredClient wraps single calls to the model service: request
// construction, failure classification, exponential backoff retries, and
// three-tier JSON extraction from the response text.
type StructuredClient struct {
	client  anthropic.Client
	cfg     StructuredClientConfig
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	logger  *zap.Logger

	// sleep is swapped out in tests to observe the backoff schedule.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewStructuredClient(client anthropic.Client, cfg StructuredClientConfig) *StructuredClient {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 8000
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}
	return &StructuredClient{
		client:  client,
		cfg:     cfg,
		limiter: limiter,
		breaker: resilience.NewCircuitBreaker(resilience.FromCircuitConfig(cfg.CircuitFailureThreshold, cfg.CircuitResetSeconds)),
		logger:  zap.L(),
		sleep:   resilience.Sleep,
	}
}

// Call sends one request and returns the extracted structured result. The
// retry state machine runs attempts 0..MaxRetries inclusive: retryable
// failures sleep base*2^attempt between attempts; non-retryable failures
// surface immediately. An empty response body is retried once, then
// returned as an empty result.
func (sc *StructuredClient) Call(ctx context.Context, system []anthropic.SystemBlock, messages []anthropic.Message) (CallResult, error) {
	req := anthropic.MessageRequest{
		Model:                sc.cfg.Model,
		MaxTokens:            sc.cfg.MaxOutputTokens,
		System:               system,
		Messages:             messages,
		Temperature:          &sc.cfg.Temperature,
		ThinkingBudgetTokens: sc.cfg.ThinkingBudgetTokens,
	}

	emptyRetried := false
	for attempt := 0; attempt <= sc.cfg.MaxRetries; attempt++ {
		if sc.limiter != nil {
			if err := sc.limiter.Wait(ctx); err != nil {
				return CallResult{}, &APIError{Kind: resilience.FailureOther, Attempts: attempt, Err: err}
			}
		}

		resp, err := resilience.ExecuteVal(ctx, sc.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return sc.client.CreateMessage(ctx, req)
		})
		if err != nil {
			kind := resilience.Classify(err)
			if !kind.Retryable() {
				return CallResult{}, &APIError{Kind: kind, Attempts: attempt + 1, Err: err}
			}
			if attempt == sc.cfg.MaxRetries {
				if kind == resilience.FailureRateLimit {
					return CallResult{}, &RateLimitError{Attempts: attempt + 1, Err: err}
				}
				return CallResult{}, &APIError{Kind: kind, Attempts: attempt + 1, Err: err}
			}
			delay := resilience.ExponentialDelay(sc.cfg.RetryBaseDelay, attempt)
			sc.logger.Warn("model call failed, retrying",
				zap.String("kind", string(kind)),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
			if err := sc.sleep(ctx, delay); err != nil {
				return CallResult{}, &APIError{Kind: kind, Attempts: attempt + 1, Err: err}
			}
			continue
		}

		text := strings.TrimSpace(resp.Text())
		if text == "" {
			if !emptyRetried && attempt < sc.cfg.MaxRetries {
				emptyRetried = true
				sc.logger.Warn("empty model response, retrying once", zap.Int("attempt", attempt))
				continue
			}
			return CallResult{Empty: true, Usage: resp.Usage}, nil
		}

		raw, ok := extractJSON(text)
		if !ok {
			sc.logger.Warn("no parsable JSON in model response",
				zap.Int("response_len", len(text)))
			return CallResult{Empty: true, Usage: resp.Usage}, nil
		}

		result, validated := decodeAnalysis(raw)
		if !validated {
			sc.logger.Warn("model output did not match expected shape, storing best-effort data")
		}
		result.Normalize()
		return CallResult{
			Analysis:  result,
			Raw:       raw,
			Validated: validated,
			Usage:     resp.Usage,
		}, nil
	}
	// Unreachable: the loop always returns.
	return CallResult{Empty: true}, nil
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// extractJSON pulls a JSON object out of model response text. Models
// frequently wrap valid JSON in prose or code fences despite schema
// instructions, so after a direct parse it tries fenced blocks in order,
// then the largest brace-delimited substring.
func extractJSON(text string) (json.RawMessage, bool) {
	if raw, ok := tryParseObject(text); ok {
		return raw, true
	}

	for _, match := range fencedBlockRe.FindAllStringSubmatch(text, -1) {
		if raw, ok := tryParseObject(match[1]); ok {
			return raw, true
		}
	}

	first := strings.IndexByte(text, '{')
	last := strings.LastIndexByte(text, '}')
	if first >= 0 && last > first {
		if raw, ok := tryParseObject(text[first : last+1]); ok {
			return raw, true
		}
	}
	return nil, false
}

func tryParseObject(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return nil, false
	}
	return json.RawMessage(s), true
}

// decodeAnalysis first attempts a strict decode that rejects unknown
// fields; if that fails it falls back to a lenient decode and reports
// validated=false so callers can choose strictness.
func decodeAnalysis(raw json.RawMessage) (model.Analysis, bool) {
	var strict model.Analysis
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&strict); err == nil {
		return strict, true
	}

	var lenient model.Analysis
	if err := json.Unmarshal(raw, &lenient); err != nil {
		return model.Analysis{}, false
	}
	return lenient, false
}
