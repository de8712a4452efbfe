package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"path/filepath"
	"strings"

	"basket-dashboard/internal/models"
)

// Worksheet bounds of the SpreadsheetML format: columns A..XFD and rows
// 1..1048576.
const (
	maxColumns = 16384
	maxRows    = 1 << 20
)

// readXLSX reads the selected worksheet of a SpreadsheetML workbook. The
// first row is the header; every following row is data, including blank rows
// between data rows.
func readXLSX(name string, r io.Reader, opt Options) ([]string, [][]models.Cell, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read xlsx: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, nil, fmt.Errorf("open xlsx: %w", err)
	}

	sheets := parseWorkbook(readZipFile(zr, "xl/workbook.xml"))
	rels := parseRelationships(readZipFile(zr, "xl/_rels/workbook.xml.rels"))
	target, err := resolveSheet(sheets, rels, opt, filepath.Base(name))
	if err != nil {
		return nil, nil, err
	}
	sheetXML := readZipFile(zr, target)
	if sheetXML == nil {
		return nil, nil, fmt.Errorf("open xlsx: worksheet %s missing from archive", target)
	}
	shared := parseSharedStrings(readZipFile(zr, "xl/sharedStrings.xml"))

	rr := newSheetRowReader(sheetXML, shared)
	first, ok := rr.Next()
	if !ok {
		if err := rr.Err(); err != nil {
			return nil, nil, fmt.Errorf("parse worksheet %s: %w", target, err)
		}
		return nil, nil, ErrNoHeader
	}
	header := make([]string, len(first.cells))
	for i, c := range first.cells {
		header[i] = c.Value
	}

	var rows [][]models.Cell
	prev := first.num
	for {
		row, ok := rr.Next()
		if !ok {
			break
		}
		// Rows absent from the sheet XML are blank rows.
		for gap := prev + 1; gap < row.num; gap++ {
			rows = append(rows, nil)
		}
		rows = append(rows, row.cells)
		prev = row.num
	}
	if err := rr.Err(); err != nil {
		return nil, nil, fmt.Errorf("parse worksheet %s: %w", target, err)
	}
	return header, rows, nil
}

type wbSheet struct {
	Name    string
	SheetID int
	RID     string
}

func resolveSheet(sheets []wbSheet, rels map[string]string, opt Options, file string) (string, error) {
	if opt.SheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s.Name, opt.SheetName) {
				if rel, ok := rels[s.RID]; ok {
					return normalizeRelPath(rel), nil
				}
			}
		}
		names := make([]string, len(sheets))
		for i, s := range sheets {
			names[i] = s.Name
		}
		return "", fmt.Errorf("sheet %q not found in workbook %q (available: %s)", opt.SheetName, file, strings.Join(names, ", "))
	}

	idx := opt.SheetIndex
	if idx <= 0 {
		idx = 1
	}
	// Workbook order decides the index; sheetId may be sparse after edits.
	if idx <= len(sheets) {
		if rel, ok := rels[sheets[idx-1].RID]; ok {
			return normalizeRelPath(rel), nil
		}
	}
	return path.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", idx)), nil
}

func parseWorkbook(data []byte) []wbSheet {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var sheets []wbSheet
	for {
		tok, err := dec.Token()
		if err != nil {
			return sheets
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sheet" {
			continue
		}
		var s wbSheet
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.Name = a.Value
			case "sheetId":
				s.SheetID = atoiSafe(a.Value)
			case "id":
				s.RID = a.Value
			}
		}
		sheets = append(sheets, s)
	}
}

// parseRelationships maps relationship ids to their targets.
func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	if len(data) == 0 {
		return out
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Relationship" {
			continue
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	}
}

func readZipFile(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil
		}
		return b
	}
	return nil
}

// parseSharedStrings concatenates the text runs of every <si> entry.
// Phonetic runs (<rPh>) are skipped.
func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		out   []string
		buf   strings.Builder
		inT   bool
		inRPh bool
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "rPh":
				inRPh = true
			case "t":
				inT = !inRPh
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "rPh":
				inRPh = false
			case "si":
				out = append(out, buf.String())
				buf.Reset()
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	}
}

type sheetRow struct {
	num   int
	cells []models.Cell
}

type sheetRowReader struct {
	dec     *xml.Decoder
	shared  []string
	lastNum int
	err     error
}

func newSheetRowReader(data []byte, shared []string) *sheetRowReader {
	return &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

func (r *sheetRowReader) Err() error { return r.err }

// Next returns the next <row> element. Row numbers come from the r attribute
// and fall back to the previous row number plus one.
func (r *sheetRowReader) Next() (sheetRow, bool) {
	var (
		row   sheetRow
		inRow bool
		col   = -1
	)
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.err = err
			}
			return sheetRow{}, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch {
			case se.Name.Local == "row":
				inRow = true
				row = sheetRow{num: r.lastNum + 1}
				col = -1
				for _, a := range se.Attr {
					if a.Name.Local == "r" {
						if n := atoiSafe(a.Value); n > 0 {
							row.num = n
						}
					}
				}
				switch {
				case row.num > maxRows:
					r.err = fmt.Errorf("row %d exceeds the worksheet limit of %d rows", row.num, maxRows)
					return sheetRow{}, false
				case row.num <= r.lastNum:
					r.err = fmt.Errorf("row %d follows row %d; rows must be in ascending order", row.num, r.lastNum)
					return sheetRow{}, false
				}
			case inRow && se.Name.Local == "c":
				var ref, typ string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						ref = a.Value
					case "t":
						typ = a.Value
					}
				}
				if idx := colIndexFromRef(ref); idx >= 0 {
					col = idx
				} else {
					col++
				}
				if col >= maxColumns {
					r.err = fmt.Errorf("cell %q in row %d is beyond the last worksheet column XFD", ref, row.num)
					return sheetRow{}, false
				}
				cell := r.readCell(typ)
				if len(row.cells) <= col {
					grown := make([]models.Cell, col+1)
					copy(grown, row.cells)
					row.cells = grown
				}
				row.cells[col] = cell
			}
		case xml.EndElement:
			if se.Name.Local == "row" && inRow {
				r.lastNum = row.num
				return row, true
			}
		}
	}
}

// readCell consumes tokens up to the closing </c> and returns the typed value.
func (r *sheetRowReader) readCell(typ string) models.Cell {
	var (
		val    string
		hasVal bool
		inRPh  bool
	)
	for {
		tok, err := r.dec.Token()
		if err != nil {
			r.err = err
			return models.Cell{}
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "rPh":
				inRPh = true
			case "v", "t":
				if inRPh {
					continue
				}
				var sb strings.Builder
				if err := r.readText(&sb); err != nil {
					r.err = err
					return models.Cell{}
				}
				val += sb.String()
				hasVal = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "rPh":
				inRPh = false
			case "c":
				return r.typedCell(typ, val, hasVal)
			}
		}
	}
}

func (r *sheetRowReader) readText(sb *strings.Builder) error {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			return nil
		}
	}
}

func (r *sheetRowReader) typedCell(typ, val string, hasVal bool) models.Cell {
	if !hasVal {
		return models.Cell{}
	}
	switch typ {
	case "s":
		idx := atoiSafe(val)
		if idx < 0 || idx >= len(r.shared) {
			return models.Cell{}
		}
		return stringCell(r.shared[idx])
	case "str", "inlineStr", "e":
		return stringCell(val)
	case "b":
		v := "False"
		if val == "1" {
			v = "True"
		}
		return models.Cell{Value: v, Kind: models.CellBool}
	default:
		// "n", "d" or no type: numeric and date cells.
		if val == "" {
			return models.Cell{}
		}
		return models.Cell{Value: val, Kind: models.CellNumber}
	}
}

func stringCell(v string) models.Cell {
	if v == "" {
		return models.Cell{}
	}
	return models.Cell{Value: v, Kind: models.CellString}
}

// colIndexFromRef converts a cell reference like "C12" to a 0-based column
// index. It returns -1 when the reference has no column letters. Indexes past
// the last worksheet column saturate at maxColumns.
func colIndexFromRef(ref string) int {
	idx := 0
	for n := 0; n < len(ref); n++ {
		c := ref[n]
		switch {
		case c >= 'A' && c <= 'Z':
			idx = idx*26 + int(c-'A'+1)
		case c >= 'a' && c <= 'z':
			idx = idx*26 + int(c-'a'+1)
		default:
			return idx - 1
		}
		if idx > maxColumns {
			return maxColumns
		}
	}
	return idx - 1
}

// atoiSafe parses leading digits, saturating at math.MaxInt32.
func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
		if n > math.MaxInt32 {
			return math.MaxInt32
		}
	}
	return n
}

// normalizeRelPath converts relationship targets to zip entry names.
// Targets may be absolute ("/xl/worksheets/sheet1.xml") or relative to xl/.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
