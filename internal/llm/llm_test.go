package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseContent(t *testing.T) {
	csv := "Date,Store Name\n2024-01-02,Shop\n"
	ok, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": csv}}},
	})

	got, err := ParseContent(ok)
	if err != nil {
		t.Fatalf("ParseContent: %v", err)
	}
	if got != csv {
		t.Errorf("content must be verbatim, got %q", got)
	}

	extra := `{"choices":[{"message":{"role":"assistant","content":"a,b"}},{"message":{"content":42}},{"index":2}]}`
	if got, err := ParseContent([]byte(extra)); err != nil || got != "a,b" {
		t.Errorf("later choices must be ignored, got %q, %v", got, err)
	}

	bad := map[string]string{
		"not json":        `<html>`,
		"empty choices":   `{"choices":[]}`,
		"missing choices": `{"id":"x"}`,
		"no message":      `{"choices":[{"index":0}]}`,
		"non-string":      `{"choices":[{"message":{"content":42}}]}`,
		"first bad":       `{"choices":[{"index":0},{"message":{"content":"a,b"}}]}`,
		"null content":    `{"choices":[{"message":{"content":null}}]}`,
		"blank content":   `{"choices":[{"message":{"content":"  \n"}}]}`,
	}
	for name, body := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := ParseContent([]byte(body))
			var mErr *MalformedResponseError
			if !errors.As(err, &mErr) {
				t.Fatalf("want *MalformedResponseError, got %T %v", err, err)
			}
		})
	}
}

func TestSendJSON(t *testing.T) {
	var gotAuth, gotType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		if r.URL.Path == "/fail" {
			http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ctx := common.WithRequestID(context.Background(), "req-1")
	raw, status, err := SendJSON(ctx, srv.Client(), srv.URL+"/ok", map[string]any{"model": "m"}, map[string]string{"Authorization": "Bearer k"}, quietLogger())
	if err != nil || status != 200 || string(raw) != `{"ok":true}` {
		t.Fatalf("got %q %d %v", raw, status, err)
	}
	if gotAuth != "Bearer k" || gotType != "application/json" || gotBody["model"] != "m" {
		t.Errorf("request = %q %q %v", gotAuth, gotType, gotBody)
	}

	_, status, err = SendJSON(ctx, srv.Client(), srv.URL+"/fail", map[string]any{}, nil, quietLogger())
	var apiErr *APIStatusError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 401 || status != 401 {
		t.Fatalf("want APIStatusError 401, got %v", err)
	}
	if !strings.Contains(apiErr.Body, "bad key") {
		t.Errorf("body = %q", apiErr.Body)
	}

	srv.Close()
	_, _, err = SendJSON(ctx, http.DefaultClient, srv.URL+"/ok", map[string]any{}, nil, quietLogger())
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("want TransportError, got %T %v", err, err)
	}
}

func TestExhaustedRetriesError(t *testing.T) {
	last := &APIStatusError{StatusCode: 503}
	err := error(&ExhaustedRetriesError{Attempts: 4, Last: last})
	if err.Error() != ExhaustedRetriesMessage {
		t.Errorf("message = %q", err.Error())
	}
	var apiErr *APIStatusError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 503 {
		t.Error("last attempt error should be reachable")
	}
}

func TestLoadPrompt(t *testing.T) {
	p, err := LoadPrompt("")
	if err != nil || p != DefaultReceiptPrompt {
		t.Fatalf("default prompt: %v", err)
	}
	if !strings.Contains(DefaultReceiptPrompt, "Date,Store Name,Store Address,Item Name,Price per Item,Tax per Item,Category") {
		t.Error("default prompt lost its CSV header")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	if err := os.WriteFile(path, []byte("  list items as CSV\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err = LoadPrompt(path)
	if err != nil || p != "list items as CSV" {
		t.Fatalf("got %q %v", p, err)
	}

	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPrompt(empty); err == nil {
		t.Error("empty prompt file should fail")
	}
}
