package web

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/imaging"
	"github.com/joseph-ayodele/receipts-extractor/internal/llm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubExtractor struct {
	text    string
	err     error
	calls   int
	gotName string
	gotBody []byte
	gotRID  string
}

func (s *stubExtractor) Extract(ctx context.Context, src imaging.Source) (string, error) {
	s.calls++
	s.gotName = src.Name
	s.gotRID = common.RequestIDFromContext(ctx)
	s.gotBody, _ = io.ReadAll(src.Reader)
	return s.text, s.err
}

func newTestRouter(ext llm.Extractor, opts Options) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(NewHandler(ext, nil, opts, logger))
}

func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(content)
	} else {
		_ = mw.WriteField("note", "no file here")
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIndexAndHealth(t *testing.T) {
	r := newTestRouter(&stubExtractor{}, Options{APIKeyConfigured: true})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `name="receipt"`) {
		t.Fatalf("GET / = %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("response should carry a request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w = serve(r, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("GET /healthz = %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get(requestIDHeader) != "abc-123" {
		t.Errorf("request id not propagated: %q", w.Header().Get(requestIDHeader))
	}
}

func TestUploadValidation(t *testing.T) {
	cases := []struct {
		name   string
		opts   Options
		req    func(t *testing.T) *http.Request
		status int
		msg    string
	}{
		{
			name:   "missing file",
			opts:   Options{APIKeyConfigured: true},
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, "", "", nil) },
			status: http.StatusBadRequest,
			msg:    "No file uploaded. Please select an image file.",
		},
		{
			name:   "wrong extension",
			opts:   Options{APIKeyConfigured: true},
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, formField, "receipt.pdf", []byte("%PDF")) },
			status: http.StatusBadRequest,
			msg:    "Please upload a valid image file. Allowed formats: .bmp, .gif",
		},
		{
			name:   "file over limit",
			opts:   Options{APIKeyConfigured: true, MaxUploadBytes: 1024},
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, formField, "big.png", make([]byte, 2048)) },
			status: http.StatusRequestEntityTooLarge,
			msg:    "File too large. Maximum size:",
		},
		{
			name:   "body over limit",
			opts:   Options{APIKeyConfigured: true, MaxUploadBytes: 1024},
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, formField, "huge.png", make([]byte, bodySlack+4096)) },
			status: http.StatusRequestEntityTooLarge,
			msg:    "File too large. Please choose a smaller image.",
		},
		{
			name:   "api key missing",
			opts:   Options{},
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, formField, "r.png", []byte("png")) },
			status: http.StatusServiceUnavailable,
			msg:    "OpenAI API key not configured.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ext := &stubExtractor{text: "unused"}
			w := serve(newTestRouter(ext, tc.opts), tc.req(t))
			if w.Code != tc.status {
				t.Errorf("status = %d, want %d", w.Code, tc.status)
			}
			if !strings.Contains(w.Body.String(), tc.msg) {
				t.Errorf("body lacks %q", tc.msg)
			}
			if ext.calls != 0 {
				t.Error("extractor must not run for rejected uploads")
			}
		})
	}
}

func TestUploadSuccess(t *testing.T) {
	ext := &stubExtractor{text: "Date,Store Name\n2024-05-06,Bakery & Co\n"}
	w := serve(newTestRouter(ext, Options{APIKeyConfigured: true}), uploadRequest(t, formField, "lunch.JPG", []byte("jpeg-bytes")))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<td>Bakery &amp; Co</td>") || !strings.Contains(body, "<th>Store Name</th>") {
		t.Errorf("rendered table missing: %s", body)
	}
	if ext.gotName != "lunch.JPG" || string(ext.gotBody) != "jpeg-bytes" {
		t.Errorf("extractor got %q %q", ext.gotName, ext.gotBody)
	}
	if ext.gotRID == "" {
		t.Error("request id should reach the extractor")
	}
}

func TestUploadExtractErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"encoding", &imaging.EncodingError{Source: "r.png", Err: errors.New("bad header")}, http.StatusUnprocessableEntity},
		{"exhausted", &llm.ExhaustedRetriesError{Attempts: 4}, http.StatusBadGateway},
		{"malformed", &llm.MalformedResponseError{Reason: "no choices in response"}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ext := &stubExtractor{err: tc.err}
			w := serve(newTestRouter(ext, Options{APIKeyConfigured: true}), uploadRequest(t, formField, "r.png", []byte("x")))
			if w.Code != tc.status {
				t.Errorf("status = %d, want %d", w.Code, tc.status)
			}
			if !strings.Contains(w.Body.String(), "Error processing receipt: ") {
				t.Error("missing error prefix")
			}
		})
	}

	ext := &stubExtractor{err: &llm.ExhaustedRetriesError{Attempts: 4}}
	w := serve(newTestRouter(ext, Options{APIKeyConfigured: true}), uploadRequest(t, formField, "r.png", []byte("x")))
	if !strings.Contains(w.Body.String(), "Please check your internet connection and try again.") {
		t.Error("exhausted message should be shown to the user")
	}
}

func TestExport(t *testing.T) {
	r := newTestRouter(&stubExtractor{}, Options{APIKeyConfigured: true})

	form := url.Values{csvField: {"Date,Item Name\n2024-05-06,Bread"}}
	req := httptest.NewRequest(http.MethodPost, "/export", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := serve(r, req)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != xlsxMediaType {
		t.Fatalf("export = %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Receipt")
	if err != nil || len(rows) != 2 || rows[1][1] != "Bread" {
		t.Errorf("rows = %v %v", rows, err)
	}

	req = httptest.NewRequest(http.MethodPost, "/export", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if w := serve(r, req); w.Code != http.StatusBadRequest {
		t.Errorf("empty export = %d", w.Code)
	}
}
