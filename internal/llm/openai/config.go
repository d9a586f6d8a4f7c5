package openai

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/llm"
)

// Config for the OpenAI client. Zero values take the defaults applied in NewClient.
type Config struct {
	APIKey              string
	BaseURL             string        // default https://api.openai.com/v1
	Model               string        // default gpt-4o
	MaxTokens           int           // default 2048
	Timeout             time.Duration // per attempt, default 60s
	MaxRetries          int           // attempts in the retry loop, default 3
	RetryDelay          time.Duration // fixed pause after a failed attempt, default 2s; negative means none
	DisableFinalAttempt bool          // skip the fallback attempt after the loop
	InsecureSkipVerify  bool          // opt-in; scoped to this client's transports
	SystemPrompt        string        // default llm.DefaultReceiptPrompt
	UserPrompt          string        // default SystemPrompt
}

// ConfigFromApp maps the application configuration onto a client Config.
// A zero retry delay in the application config means no pause.
func ConfigFromApp(c common.LLMConfig, prompt string) Config {
	delay := c.RetryDelay
	if delay == 0 {
		delay = -1
	}
	return Config{
		APIKey:              c.APIKey,
		BaseURL:             c.BaseURL,
		Model:               c.Model,
		MaxTokens:           c.MaxTokens,
		Timeout:             c.Timeout,
		MaxRetries:          c.RetryAttempts,
		RetryDelay:          delay,
		DisableFinalAttempt: !c.FinalAttempt,
		InsecureSkipVerify:  c.InsecureSkipVerify,
		SystemPrompt:        prompt,
	}
}

type Client struct {
	cfg      Config
	enc      llm.ImageEncoder
	http     *http.Client
	fallback *http.Client
	logger   *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the client used by the retry loop. The fallback attempt
// keeps its own client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func NewClient(cfg Config, enc llm.ImageEncoder, logger *slog.Logger, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	switch {
	case cfg.RetryDelay == 0:
		cfg.RetryDelay = 2 * time.Second
	case cfg.RetryDelay < 0:
		cfg.RetryDelay = 0
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = llm.DefaultReceiptPrompt
	}
	if cfg.UserPrompt == "" {
		cfg.UserPrompt = cfg.SystemPrompt
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:      cfg,
		enc:      enc,
		http:     &http.Client{Timeout: cfg.Timeout, Transport: newTransport(cfg.InsecureSkipVerify)},
		fallback: &http.Client{Timeout: cfg.Timeout, Transport: newTransport(cfg.InsecureSkipVerify)},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newTransport returns a clone of http.DefaultTransport carrying the TLS policy.
func newTransport(insecure bool) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via Config
	}
	return t
}
