package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joseph-ayodele/receipts-extractor/internal/bootstrap"
	"github.com/joseph-ayodele/receipts-extractor/internal/llm"
)

func main() {
	deps, err := bootstrap.Load(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg := deps.Config

	fmt.Println("Testing OpenAI API configuration")
	fmt.Println(strings.Repeat("=", 40))

	if err := cfg.LLM.RequireAPIKey(); err != nil {
		fmt.Println("API key is missing or still set to the placeholder value.")
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Printf("API key: %s\n", maskKey(cfg.LLM.APIKey))
	fmt.Printf("Endpoint: %s, model: %s\n", cfg.LLM.BaseURL, cfg.LLM.Model)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout)
	defer cancel()

	reply, err := deps.Client.Ping(ctx)
	fmt.Println(strings.Repeat("=", 40))
	if err != nil {
		fmt.Printf("API test failed: %v\n", err)
		var apiErr *llm.APIStatusError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 401 {
			fmt.Println("The key was rejected. Check that it is valid and has credits.")
		}
		fmt.Println("\nTroubleshooting steps:")
		fmt.Println("1. Make sure you have a valid OpenAI API key")
		fmt.Println("2. Set OPENAI_API_KEY or update your config file")
		fmt.Println("3. Ensure you have an internet connection")
		fmt.Println("4. Check if your API key has sufficient credits")
		cancel()
		os.Exit(1)
	}
	fmt.Printf("API test successful. Response: %s\n", reply)
}

func maskKey(k string) string {
	if len(k) <= 10 {
		return "[too short]"
	}
	return k[:10] + "..."
}
