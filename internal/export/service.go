package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	defaultSheet  = "Receipt"
	maxSheetName  = 31
	minColWidth   = 10
	maxColWidth   = 60
	firstSheetRaw = "Sheet1"
)

// Service turns model replies (CSV text) into XLSX workbooks for download.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// Sheet is one reply to render, named after its source image.
type Sheet struct {
	Name string
	Text string
}

// ReceiptXLSX renders a single reply into a one-sheet workbook.
func (s *Service) ReceiptXLSX(ctx context.Context, text string) ([]byte, error) {
	return s.WorkbookXLSX(ctx, []Sheet{{Name: defaultSheet, Text: text}})
}

// WorkbookXLSX renders one sheet per reply, in order.
func (s *Service) WorkbookXLSX(ctx context.Context, sheets []Sheet) ([]byte, error) {
	start := time.Now()
	wb := NewWorkbook()
	defer func() {
		if err := wb.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_error", "error", err)
		}
	}()

	for _, sh := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := wb.AddSheet(sh.Name, sh.Text); err != nil {
			return nil, err
		}
	}
	out, err := wb.Bytes()
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"sheets", len(sheets),
		"bytes", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// Workbook builds an XLSX file sheet by sheet. The first row of every sheet is bold.
type Workbook struct {
	f     *excelize.File
	names map[string]struct{}
	bold  int
}

func NewWorkbook() *Workbook {
	return &Workbook{f: excelize.NewFile(), names: map[string]struct{}{}, bold: -1}
}

// AddSheet writes text as rows into a new sheet and returns the sheet name actually used,
// which is sanitized for Excel and made unique.
func (w *Workbook) AddSheet(name, text string) (string, error) {
	sheet := w.uniqueName(sanitizeSheetName(name))

	if len(w.names) == 0 {
		if err := w.f.SetSheetName(firstSheetRaw, sheet); err != nil {
			return "", fmt.Errorf("rename sheet: %w", err)
		}
	} else if _, err := w.f.NewSheet(sheet); err != nil {
		return "", fmt.Errorf("new sheet: %w", err)
	}
	w.names[strings.ToLower(sheet)] = struct{}{}

	rows := SplitRows(text)
	widths := map[int]int{}
	for r, cols := range rows {
		for c, v := range cols {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return "", err
			}
			if err := w.f.SetCellValue(sheet, cell, v); err != nil {
				return "", fmt.Errorf("set %s!%s: %w", sheet, cell, err)
			}
			if n := utf8.RuneCountInString(v) + 2; n > widths[c] {
				widths[c] = n
			}
		}
	}

	for c, width := range widths {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return "", err
		}
		if err := w.f.SetColWidth(sheet, col, col, float64(clamp(width, minColWidth, maxColWidth))); err != nil {
			return "", fmt.Errorf("set width %s!%s: %w", sheet, col, err)
		}
	}

	if len(rows) > 0 && len(rows[0]) > 0 {
		if err := w.styleHeader(sheet, len(rows[0])); err != nil {
			return "", err
		}
	}
	return sheet, nil
}

func (w *Workbook) styleHeader(sheet string, cols int) error {
	if w.bold < 0 {
		id, err := w.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("header style: %w", err)
		}
		w.bold = id
	}
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	return w.f.SetCellStyle(sheet, "A1", last, w.bold)
}

// Bytes serializes the workbook. An empty workbook still yields one blank sheet.
func (w *Workbook) Bytes() ([]byte, error) {
	buf, err := w.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *Workbook) Close() error { return w.f.Close() }

func (w *Workbook) uniqueName(base string) string {
	name := base
	for i := 2; ; i++ {
		if _, taken := w.names[strings.ToLower(name)]; !taken {
			return name
		}
		suffix := fmt.Sprintf(" (%d)", i)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
}

// SplitRows turns reply text into rows. Code fences and blank lines are dropped; each
// line is split as one CSV record and kept whole when it cannot be parsed.
func SplitRows(text string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "```") {
			continue
		}
		r := csv.NewReader(strings.NewReader(trimmed))
		r.LazyQuotes = true
		r.FieldsPerRecord = -1
		r.TrimLeadingSpace = true
		rec, err := r.Read()
		if err != nil {
			rec = []string{trimmed}
		}
		rows = append(rows, rec)
	}
	return rows
}

func sanitizeSheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	if name == "" {
		name = defaultSheet
	}
	return truncateRunes(name, maxSheetName)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
