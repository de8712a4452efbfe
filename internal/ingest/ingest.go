package ingest

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"basket-dashboard/internal/models"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	ErrNoHeader          = errors.New("spreadsheet has no header row")
	ErrTooLarge          = errors.New("spreadsheet is too large")
)

// MaxCells bounds the padded table built from one sheet, header included.
// Blank rows count in full.
const MaxCells = 1 << 24

// Options selects the sheet of a workbook and the CSV delimiter.
// SheetIndex is 1-based; when both SheetName and SheetIndex are unset the
// first sheet is read.
type Options struct {
	SheetName  string
	SheetIndex int
	// Delimiter for CSV. If 0, ',' is used, or '\t' for .tsv files.
	Delimiter rune
}

// Extensions lists the file extensions Read accepts.
var Extensions = []string{".xlsx", ".csv", ".tsv"}

// Read parses an uploaded spreadsheet into a table, choosing the reader by
// the file extension of name.
func Read(name string, r io.Reader, opt Options) (*models.Table, error) {
	var (
		header []string
		rows   [][]models.Cell
		err    error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xlsx":
		header, rows, err = readXLSX(name, r, opt)
	case ".csv", ".tsv":
		delim := opt.Delimiter
		if delim == 0 {
			delim = ','
			if ext == ".tsv" {
				delim = '\t'
			}
		}
		header, rows, err = readCSV(r, delim)
	default:
		return nil, fmt.Errorf("%w: %q (accepted: %s)", ErrUnsupportedFormat, ext, strings.Join(Extensions, ", "))
	}
	if err != nil {
		return nil, err
	}
	return buildTable(filepath.Base(name), header, rows)
}

// buildTable normalizes raw rows against the header. Blank header cells and
// data wider than the header get "Unnamed: N" column names; short rows are
// padded with empty cells.
func buildTable(name string, header []string, raw [][]models.Cell) (*models.Table, error) {
	width := len(header)
	for _, r := range raw {
		width = max(width, len(r))
	}
	if width == 0 {
		return nil, ErrNoHeader
	}
	if cells := width * (len(raw) + 1); cells > MaxCells {
		return nil, fmt.Errorf("%w: %d rows of %d columns exceed %d cells", ErrTooLarge, len(raw), width, MaxCells)
	}

	t := &models.Table{Name: name, Header: make([]string, width)}
	for i := range width {
		h := ""
		if i < len(header) {
			h = header[i]
		}
		if strings.TrimSpace(h) == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		t.Header[i] = h
	}

	t.Rows = make([]models.Row, 0, len(raw))
	for i, r := range raw {
		cells := make([]models.Cell, width)
		copy(cells, r)
		t.Rows = append(t.Rows, models.Row{Index: i + 1, Cells: cells})
	}
	return t, nil
}

// Head returns the first n rows as display strings. Empty cells render as
// "None".
func Head(t *models.Table, n int) [][]string {
	n = min(n, len(t.Rows))
	out := make([][]string, 0, n)
	for _, r := range t.Rows[:n] {
		vals := make([]string, len(r.Cells))
		for j, c := range r.Cells {
			if c.Kind == models.CellEmpty {
				vals[j] = "None"
				continue
			}
			vals[j] = c.Value
		}
		out = append(out, vals)
	}
	return out
}
