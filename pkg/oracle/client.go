// Package oracle arbitrates uncertain pairs via an external LLM service
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Chat is the minimal completion surface the client needs. Tests stub it.
type Chat interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ErrorKind classifies why an oracle interaction fell back.
type ErrorKind string

const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindParse      ErrorKind = "parse"
	ErrorKindTransient  ErrorKind = "transient"
	ErrorKindValidation ErrorKind = "validation"
)

// Outcome is the explicit result of a pairwise arbitration. The verdict
// is always well formed; Kind marks the fallback branch.
type Outcome struct {
	Verdict models.Verdict
	Kind    ErrorKind
	Err     error
}

// Fallback reports whether the verdict is a conservative default rather
// than a real oracle decision.
func (o Outcome) Fallback() bool {
	return o.Kind != ErrorKindNone
}

// BatchMatch is one group of matching ids from a batched call.
type BatchMatch struct {
	ProductIDs    []int64 `json:"product_ids"`
	CanonicalName string  `json:"canonical_name"`
	Confidence    string  `json:"confidence"` // HIGH, MEDIUM, LOW
}

// Config contains oracle client settings. Construct once, never mutate.
type Config struct {
	Model        string
	MaxAttempts  int
	RetryDelay   time.Duration
	CallsPerSec  float64
	MaxBatchSize int
}

// DefaultConfig returns the default oracle configuration
func DefaultConfig() Config {
	return Config{
		Model:        "gpt-4o-mini",
		MaxAttempts:  3,
		RetryDelay:   2 * time.Second,
		CallsPerSec:  2,
		MaxBatchSize: 150,
	}
}

// Client issues arbitration calls with retry, backoff and pacing.
type Client struct {
	chat    Chat
	limiter *rate.Limiter
	logger  ectologger.Logger
	cfg     Config
}

// New creates an oracle client backed by the OpenAI chat API.
func New(apiKey, baseURL string, cfg Config, logger ectologger.Logger) *Client {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	chat := &openAIChat{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
	return NewWithChat(chat, cfg, logger)
}

// NewWithChat creates an oracle client over an explicit completion backend.
func NewWithChat(chat Chat, cfg Config, logger ectologger.Logger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.CallsPerSec <= 0 {
		cfg.CallsPerSec = 1
	}
	return &Client{
		chat:    chat,
		limiter: rate.NewLimiter(rate.Limit(cfg.CallsPerSec), 1),
		logger:  logger,
		cfg:     cfg,
	}
}

// ArbitratePair resolves one uncertain pair. Exhausted retries produce
// a NO_MATCH verdict with a "fallback" reason, never an unresolved pair.
func (c *Client) ArbitratePair(ctx context.Context, a, b *models.RawRecord) Outcome {
	ctx, span := tracing.StartSpan(ctx, "oracle.Client.ArbitratePair")
	defer span.End()

	pair := models.NewCandidatePair(a.ID, b.ID)
	log := c.logger.WithContext(ctx).WithFields(map[string]any{"pair_key": pair.Key()})

	var parsed pairResponse
	kind, err := c.callWithRetry(ctx, pairPrompt(a, b), &parsed)
	if err != nil {
		log.WithError(err).Warn("Oracle arbitration failed, recording fallback verdict")
		return Outcome{
			Verdict: models.Verdict{
				PairKey: pair.Key(),
				Outcome: models.VerdictNoMatch,
				Reason:  fmt.Sprintf("fallback: %s error after %d attempts: %v", kind, c.cfg.MaxAttempts, err),
				Source:  models.VerdictSourceOracle,
			},
			Kind: kind,
			Err:  err,
		}
	}

	outcome := models.VerdictNoMatch
	if parsed.IsCoreProductMatch {
		outcome = models.VerdictMatch
	}
	return Outcome{
		Verdict: models.Verdict{
			PairKey: pair.Key(),
			Outcome: outcome,
			Reason:  parsed.MatchReason,
			Source:  models.VerdictSourceOracle,
		},
	}
}

// ArbitrateBatch classifies a pre-grouped set of records in one call.
// The caller decomposes each returned group into pairwise MATCH edges.
func (c *Client) ArbitrateBatch(ctx context.Context, records []*models.RawRecord) ([]BatchMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "oracle.Client.ArbitrateBatch")
	defer span.End()

	if len(records) < 2 {
		return nil, nil
	}

	var parsed batchResponse
	if _, err := c.callWithRetry(ctx, batchPrompt(records), &parsed); err != nil {
		return nil, fmt.Errorf("batch arbitration failed: %w", err)
	}

	// Drop groups referencing ids that were not in the request.
	known := make(map[int64]struct{}, len(records))
	for _, r := range records {
		known[r.ID] = struct{}{}
	}
	matches := make([]BatchMatch, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		valid := len(m.ProductIDs) >= 2
		for _, id := range m.ProductIDs {
			if _, ok := known[id]; !ok {
				valid = false
				break
			}
		}
		if valid {
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// PickCanonical asks the oracle to choose one name from the exact list.
// Validation against the candidate list is the caller's responsibility.
func (c *Client) PickCanonical(ctx context.Context, names []string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "oracle.Client.PickCanonical")
	defer span.End()

	var parsed canonicalResponse
	if _, err := c.callWithRetry(ctx, canonicalPrompt(names), &parsed); err != nil {
		return "", err
	}
	return strings.TrimSpace(parsed.CanonicalName), nil
}

type pairResponse struct {
	IsCoreProductMatch bool   `json:"is_core_product_match"`
	MatchReason        string `json:"match_reason"`
}

type batchResponse struct {
	Matches   []BatchMatch `json:"matches"`
	Unmatched []int64      `json:"unmatched"`
}

type canonicalResponse struct {
	CanonicalName string `json:"canonical_name"`
	Reason        string `json:"reason"`
}

// callWithRetry issues the prompt with exponential backoff. Transport
// errors and malformed bodies are both transient.
func (c *Client) callWithRetry(ctx context.Context, prompt string, out any) (ErrorKind, error) {
	delay := c.cfg.RetryDelay
	var lastErr error
	kind := ErrorKindTransient

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return ErrorKindTransient, err
		}

		raw, err := c.chat.Complete(ctx, prompt)
		if err == nil {
			if perr := json.Unmarshal([]byte(extractJSON(raw)), out); perr == nil {
				return ErrorKindNone, nil
			} else {
				lastErr = perr
				kind = ErrorKindParse
			}
		} else {
			lastErr = err
			kind = ErrorKindTransient
		}

		c.logger.WithContext(ctx).WithError(lastErr).WithFields(map[string]any{
			"attempt": attempt,
		}).Warn("Oracle call failed")

		if attempt < c.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return ErrorKindTransient, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return kind, lastErr
}

// extractJSON trims markdown fences and any prose around the outermost
// JSON object.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return raw
	}
	return raw[start : end+1]
}

// openAIChat adapts the go-openai client to the Chat interface.
type openAIChat struct {
	client *openai.Client
	model  string
}

func (o *openAIChat) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}
