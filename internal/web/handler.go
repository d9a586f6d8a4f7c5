package web

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/export"
	"github.com/joseph-ayodele/receipts-extractor/internal/imaging"
	"github.com/joseph-ayodele/receipts-extractor/internal/llm"
)

const (
	formField     = "receipt"
	csvField      = "csv"
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// slack over the file limit for multipart framing and other fields
	bodySlack = 1 << 20
)

// Options configure the upload app.
type Options struct {
	MaxUploadBytes   int64
	APIKeyConfigured bool
}

type Handler struct {
	extractor llm.Extractor
	exporter  *export.Service
	opts      Options
	logger    *slog.Logger
}

func NewHandler(extractor llm.Extractor, exporter *export.Service, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if exporter == nil {
		exporter = export.NewService(logger)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = constants.DefaultMaxUploadBytes
	}
	return &Handler{extractor: extractor, exporter: exporter, opts: opts, logger: logger}
}

type pageData struct {
	CSV            string
	Rows           [][]string
	Error          string
	Filename       string
	AllowedFormats string
	Accept         string
	MaxSize        string
}

func (h *Handler) page() pageData {
	exts := constants.AllowedExtList()
	return pageData{
		AllowedFormats: strings.Join(exts, ", "),
		Accept:         strings.Join(exts, ","),
		MaxSize:        sizeLabel(h.opts.MaxUploadBytes),
	}
}

func (h *Handler) render(c *gin.Context, status int, data pageData) {
	c.HTML(status, "index.html", data)
}

func (h *Handler) renderError(c *gin.Context, status int, msg string) {
	data := h.page()
	data.Error = msg
	h.render(c, status, data)
}

// Index serves the empty upload form.
func (h *Handler) Index(c *gin.Context) {
	h.render(c, http.StatusOK, h.page())
}

// Upload validates the posted image, extracts it and renders the reply.
func (h *Handler) Upload(c *gin.Context) {
	ctx := c.Request.Context()
	rid := common.RequestIDFromContext(ctx)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes+bodySlack)

	fh, err := c.FormFile(formField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.renderError(c, http.StatusRequestEntityTooLarge, "File too large. Please choose a smaller image.")
		case errors.Is(err, http.ErrMissingFile):
			h.renderError(c, http.StatusBadRequest, "No file uploaded. Please select an image file.")
		default:
			h.logger.Warn("web.upload.bad_form", "req_id", rid, "error", err)
			h.renderError(c, http.StatusBadRequest, "No file uploaded. Please select an image file.")
		}
		return
	}

	if status, msg := h.validate(fh); msg != "" {
		h.logger.Info("web.upload.rejected", "req_id", rid, "file", fh.Filename, "size", fh.Size, "reason", msg)
		h.renderError(c, status, msg)
		return
	}

	if !h.opts.APIKeyConfigured {
		h.renderError(c, http.StatusServiceUnavailable, "OpenAI API key not configured. Please set OPENAI_API_KEY in the environment or config file.")
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.renderError(c, http.StatusInternalServerError, "Error processing receipt: "+err.Error())
		return
	}
	defer func() { _ = f.Close() }()

	h.logger.Info("web.upload.processing", "req_id", rid, "file", fh.Filename, "size", fh.Size)
	text, err := h.extractor.Extract(ctx, imaging.FromReader(f, fh.Filename))
	if err != nil {
		h.logger.Error("web.upload.extract_error", "req_id", rid, "file", fh.Filename, "error", err)
		h.renderError(c, statusFor(err), "Error processing receipt: "+err.Error())
		return
	}

	data := h.page()
	data.CSV = text
	data.Rows = export.SplitRows(text)
	data.Filename = fh.Filename
	h.render(c, http.StatusOK, data)
}

// validate returns a status and user-facing message, or an empty message when fh is acceptable.
func (h *Handler) validate(fh *multipart.FileHeader) (int, string) {
	if strings.TrimSpace(fh.Filename) == "" {
		return http.StatusBadRequest, "No file selected. Please choose an image file."
	}
	if !constants.IsAllowedExt(filepath.Ext(fh.Filename)) {
		return http.StatusBadRequest, "Please upload a valid image file. Allowed formats: " + strings.Join(constants.AllowedExtList(), ", ")
	}
	if fh.Size > h.opts.MaxUploadBytes {
		return http.StatusRequestEntityTooLarge, "File too large. Maximum size: " + sizeLabel(h.opts.MaxUploadBytes)
	}
	return 0, ""
}

// Export converts posted reply text into an XLSX download.
func (h *Handler) Export(c *gin.Context) {
	text := c.PostForm(csvField)
	if strings.TrimSpace(text) == "" {
		h.renderError(c, http.StatusBadRequest, "Nothing to export. Extract a receipt first.")
		return
	}
	b, err := h.exporter.ReceiptXLSX(c.Request.Context(), text)
	if err != nil {
		h.logger.Error("web.export.error", "req_id", common.RequestIDFromContext(c.Request.Context()), "error", err)
		h.renderError(c, http.StatusInternalServerError, "Export failed: "+err.Error())
		return
	}
	c.Header("Content-Disposition", `attachment; filename="receipt.xlsx"`)
	c.Data(http.StatusOK, xlsxMediaType, b)
}

func sizeLabel(n int64) string {
	if n >= 1<<20 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%dKB", max(n>>10, 1))
}

func statusFor(err error) int {
	var (
		encErr *imaging.EncodingError
		exErr  *llm.ExhaustedRetriesError
		mErr   *llm.MalformedResponseError
	)
	switch {
	case errors.As(err, &encErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &exErr), errors.As(err, &mErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
