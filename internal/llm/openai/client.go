package openai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/imaging"
	"github.com/joseph-ayodele/receipts-extractor/internal/llm"
)

const (
	pingMessage   = "Hello! Please respond with 'API is working' if you can see this message."
	pingMaxTokens = 50
)

// Extract implements llm.Extractor using a vision chat/completions request.
// The reply text is returned verbatim.
func (c *Client) Extract(ctx context.Context, src imaging.Source) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
	}
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"source", src.String(),
		"model", c.cfg.Model,
		"max_tokens", c.cfg.MaxTokens,
		"state", constants.StateIdle,
	)

	img, err := c.enc.Encode(ctx, src)
	if err != nil {
		var encErr *imaging.EncodingError
		if !errors.As(err, &encErr) {
			err = &imaging.EncodingError{Source: src.String(), Err: err}
		}
		c.logger.Error("llm.extract.encode_error", "req_id", rid, "error", err)
		return "", err
	}

	raw, err := c.deliver(ctx, rid, c.buildVisionBody(img.DataURL()))
	if err != nil {
		c.logger.Error("llm.extract.failed",
			"req_id", rid, "error", err,
			"state", constants.StateFailed,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	content, err := llm.ParseContent(raw)
	if err != nil {
		c.logger.Error("llm.extract.malformed_response",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"content_len", len(content),
		"state", constants.StateSuccess,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

// Ping sends a tiny text-only completion in a single attempt to check key and connectivity.
func (c *Client) Ping(ctx context.Context) (string, error) {
	body := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]any{
			{"role": "user", "content": pingMessage},
		},
		"max_tokens": pingMaxTokens,
	}
	raw, _, err := llm.SendJSON(ctx, c.http, c.endpoint(), body, c.headers(), c.logger)
	if err != nil {
		return "", err
	}
	return llm.ParseContent(raw)
}

// deliver runs the retry loop and then the final fallback attempt.
// Idle -> Attempting(1..n) -> FinalAttempt -> Success | Failed.
func (c *Client) deliver(ctx context.Context, rid string, body map[string]any) ([]byte, error) {
	endpoint := c.endpoint()
	headers := c.headers()
	attempts := 0
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		attempts++
		c.logger.Info("llm.extract.attempt",
			"req_id", rid, "attempt", attempt, "max", c.cfg.MaxRetries,
			"state", constants.StateAttempting,
		)
		raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
		if err == nil {
			return raw, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err
		c.logger.Warn("llm.extract.attempt_failed",
			"req_id", rid, "attempt", attempt, "error", err,
			"retry_in_ms", c.cfg.RetryDelay.Milliseconds(),
		)
		if attempt == c.cfg.MaxRetries && c.cfg.DisableFinalAttempt {
			break
		}
		if err := sleepCtx(ctx, c.cfg.RetryDelay); err != nil {
			return nil, err
		}
	}

	if !c.cfg.DisableFinalAttempt {
		attempts++
		c.logger.Warn("llm.extract.final_attempt",
			"req_id", rid, "attempt", attempts,
			"state", constants.StateFinalAttempt,
		)
		raw, _, err := llm.SendJSON(ctx, c.fallback, endpoint, body, headers, c.logger)
		if err == nil {
			return raw, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err
	}

	return nil, &llm.ExhaustedRetriesError{Attempts: attempts, Last: lastErr}
}

func (c *Client) buildVisionBody(dataURL string) map[string]any {
	return map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]any{
			{"role": "system", "content": c.cfg.SystemPrompt},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": c.cfg.UserPrompt},
				{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
			}},
		},
		"max_tokens": c.cfg.MaxTokens,
	}
}

func (c *Client) endpoint() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ llm.Extractor = (*Client)(nil)
