package bootstrap

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/imaging"
	"github.com/joseph-ayodele/receipts-extractor/internal/llm"
	"github.com/joseph-ayodele/receipts-extractor/internal/llm/openai"
)

// Deps are the process-wide pieces every command needs.
type Deps struct {
	Config *common.Config
	Logger *slog.Logger
	Client *openai.Client
}

// Load reads and validates configuration, installs the default logger writing to logOut,
// loads the prompt once and builds the extraction client.
func Load(logOut io.Writer) (*Deps, error) {
	cfg, err := common.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := common.NewLogger(logOut, cfg.Log)
	slog.SetDefault(logger)

	prompt, err := llm.LoadPrompt(cfg.LLM.PromptFile)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("load prompt %q", cfg.LLM.PromptFile), err)
	}

	enc := imaging.NewEncoder(imaging.Config{HeicConverter: cfg.Image.HeicConverter}, logger)
	client := openai.NewClient(openai.ConfigFromApp(cfg.LLM, prompt), enc, logger)

	logger.Info("bootstrap.ready",
		"model", cfg.LLM.Model,
		"base_url", cfg.LLM.BaseURL,
		"retry_attempts", cfg.LLM.RetryAttempts,
		"retry_delay", cfg.LLM.RetryDelay.String(),
		"final_attempt", cfg.LLM.FinalAttempt,
		"insecure_skip_verify", cfg.LLM.InsecureSkipVerify,
		"api_key_configured", cfg.LLM.APIKeyConfigured(),
	)
	if cfg.LLM.InsecureSkipVerify {
		logger.Warn("bootstrap.tls_verification_disabled", "base_url", cfg.LLM.BaseURL)
	}
	return &Deps{Config: cfg, Logger: logger, Client: client}, nil
}
