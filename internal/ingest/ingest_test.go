package ingest

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basket-dashboard/internal/models"
)

const (
	workbookXML = `<?xml version="1.0" encoding="UTF-8"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets>
<sheet name="Notes" sheetId="3" r:id="rId2"/>
<sheet name="Baskets" sheetId="1" r:id="rId1"/>
</sheets>
</workbook>`

	relsXML = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="/xl/worksheets/sheet2.xml"/>
</Relationships>`

	sharedXML = `<?xml version="1.0" encoding="UTF-8"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="4" uniqueCount="4">
<si><t>Items</t></si>
<si><t>Store</t></si>
<si><r><t>milk,</t></r><r><t>bread</t></r></si>
<si><t>north</t><rPh sb="0" eb="1"><t>ignored</t></rPh></si>
</sst>`

	basketsSheet = `<?xml version="1.0" encoding="UTF-8"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>
<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c></row>
<row r="2"><c r="A2" t="s"><v>2</v></c><c r="B2" t="s"><v>3</v></c></row>
<row r="4"><c r="A4" t="inlineStr"><is><t>eggs</t></is></c><c r="C4"><v>3.5</v></c></row>
<row r="5"><c r="A5"><v>42</v></c><c r="B5" t="b"><v>1</v></c></row>
</sheetData></worksheet>`

	notesSheet = `<?xml version="1.0" encoding="UTF-8"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>
<row r="1"><c r="A1" t="str"><v>Note</v></c></row>
<row r="2"><c r="A2" t="str"><v>hello</v></c></row>
</sheetData></worksheet>`
)

func buildXLSX(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testWorkbook(t *testing.T) []byte {
	return buildXLSX(t, map[string]string{
		"xl/workbook.xml":            workbookXML,
		"xl/_rels/workbook.xml.rels": relsXML,
		"xl/sharedStrings.xml":       sharedXML,
		"xl/worksheets/sheet1.xml":   basketsSheet,
		"xl/worksheets/sheet2.xml":   notesSheet,
	})
}

func TestRead_XLSXByName(t *testing.T) {
	tbl, err := Read("retail.xlsx", bytes.NewReader(testWorkbook(t)), Options{SheetName: "baskets"})
	require.NoError(t, err)

	assert.Equal(t, "retail.xlsx", tbl.Name)
	assert.Equal(t, []string{"Items", "Store", "Unnamed: 2"}, tbl.Header)
	require.Len(t, tbl.Rows, 4)

	assert.Equal(t, models.Cell{Value: "milk,bread", Kind: models.CellString}, tbl.Rows[0].Cells[0])
	assert.Equal(t, models.Cell{Value: "north", Kind: models.CellString}, tbl.Rows[0].Cells[1])

	// Row 3 is missing from the sheet XML and reads as blank.
	for _, c := range tbl.Rows[1].Cells {
		assert.Equal(t, models.CellEmpty, c.Kind)
	}

	assert.Equal(t, models.Cell{Value: "eggs", Kind: models.CellString}, tbl.Rows[2].Cells[0])
	assert.Equal(t, models.CellEmpty, tbl.Rows[2].Cells[1].Kind)
	assert.Equal(t, models.Cell{Value: "3.5", Kind: models.CellNumber}, tbl.Rows[2].Cells[2])

	assert.Equal(t, models.Cell{Value: "42", Kind: models.CellNumber}, tbl.Rows[3].Cells[0])
	assert.Equal(t, models.Cell{Value: "True", Kind: models.CellBool}, tbl.Rows[3].Cells[1])
	assert.Equal(t, 4, tbl.Rows[3].Index)
}

func TestRead_XLSXFirstSheetByDefault(t *testing.T) {
	tbl, err := Read("retail.xlsx", bytes.NewReader(testWorkbook(t)), Options{})
	require.NoError(t, err)

	// Workbook order, not sheetId, decides which sheet comes first.
	assert.Equal(t, []string{"Note"}, tbl.Header)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "hello", tbl.Rows[0].Cells[0].Value)
}

func TestRead_XLSXByIndex(t *testing.T) {
	tbl, err := Read("retail.xlsx", bytes.NewReader(testWorkbook(t)), Options{SheetIndex: 2})
	require.NoError(t, err)
	assert.Equal(t, "Items", tbl.Header[0])
}

func TestRead_XLSXUnknownSheet(t *testing.T) {
	_, err := Read("retail.xlsx", bytes.NewReader(testWorkbook(t)), Options{SheetName: "Sales"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Sales" not found`)
	assert.Contains(t, err.Error(), "Notes, Baskets")
}

func TestRead_XLSXWithoutWorkbookFallsBack(t *testing.T) {
	data := buildXLSX(t, map[string]string{
		"xl/worksheets/sheet1.xml": notesSheet,
	})
	tbl, err := Read("bare.xlsx", bytes.NewReader(data), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Note"}, tbl.Header)
}

func TestRead_XLSXErrors(t *testing.T) {
	_, err := Read("broken.xlsx", strings.NewReader("not a zip"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open xlsx")

	empty := buildXLSX(t, map[string]string{
		"xl/worksheets/sheet1.xml": `<worksheet><sheetData/></worksheet>`,
	})
	_, err = Read("empty.xlsx", bytes.NewReader(empty), Options{})
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestRead_CSV(t *testing.T) {
	data := "Items,Store\n\"milk,bread\",north\n,south\neggs\n"
	tbl, err := Read("baskets.csv", strings.NewReader(data), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Items", "Store"}, tbl.Header)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, "milk,bread", tbl.Rows[0].Cells[0].Value)
	assert.Equal(t, models.CellEmpty, tbl.Rows[1].Cells[0].Kind)
	// Short rows are padded to the header width.
	assert.Len(t, tbl.Rows[2].Cells, 2)
	assert.Equal(t, models.CellEmpty, tbl.Rows[2].Cells[1].Kind)
}

func TestRead_TSV(t *testing.T) {
	tbl, err := Read("baskets.TSV", strings.NewReader("Items\tStore\nmilk,bread\tnorth\n"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "milk,bread", tbl.Rows[0].Cells[0].Value)
	assert.Equal(t, "north", tbl.Rows[0].Cells[1].Value)
}

func TestRead_Errors(t *testing.T) {
	_, err := Read("baskets.pdf", strings.NewReader("x"), Options{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Read("empty.csv", strings.NewReader(""), Options{})
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestHead(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Items,Store\n")
	for range 15 {
		sb.WriteString("milk,\n")
	}
	tbl, err := Read("baskets.csv", strings.NewReader(sb.String()), Options{})
	require.NoError(t, err)

	head := Head(tbl, 10)
	require.Len(t, head, 10)
	assert.Equal(t, []string{"milk", "None"}, head[0])

	assert.Len(t, Head(tbl, 100), 15)
}

func TestColIndexFromRef(t *testing.T) {
	tests := map[string]int{
		"A1": 0, "B7": 1, "Z3": 25, "AA10": 26, "ab2": 27, "12": -1, "": -1,
		"XFD1": maxColumns - 1, "XFE1": maxColumns, "ZZZZZZZZZZZZ2": maxColumns,
		strings.Repeat("Z", 40) + "1": maxColumns,
	}
	for ref, want := range tests {
		assert.Equal(t, want, colIndexFromRef(ref), ref)
	}
}

func sheetOnly(t *testing.T, rows string) []byte {
	return buildXLSX(t, map[string]string{
		"xl/worksheets/sheet1.xml": "<worksheet><sheetData>" + rows + "</sheetData></worksheet>",
	})
}

func TestRead_XLSXOutOfBounds(t *testing.T) {
	const header = `<row r="1"><c r="A1" t="str"><v>Items</v></c></row>`
	tests := []struct {
		name string
		rows string
		want string
	}{
		{"column past XFD", header + `<row r="2"><c r="ZZZZZZZZZZZZ2" t="str"><v>milk</v></c></row>`, `cell "ZZZZZZZZZZZZ2" in row 2 is beyond the last worksheet column XFD`},
		{"column past XFD in header", `<row r="1"><c r="XFE1" t="str"><v>Items</v></c></row>`, `cell "XFE1" in row 1`},
		{"row past limit", header + `<row r="5000000"><c r="A5000000" t="str"><v>milk</v></c></row>`, "row 5000000 exceeds the worksheet limit of 1048576 rows"},
		{"row number overflow", header + `<row r="99999999999999999999999"><c t="str"><v>milk</v></c></row>`, "exceeds the worksheet limit"},
		{"row repeated", header + `<row r="2"><c t="str"><v>milk</v></c></row><row r="2"><c t="str"><v>eggs</v></c></row>`, "row 2 follows row 2"},
		{"row backwards", header + `<row r="3"><c t="str"><v>milk</v></c></row><row r="2"><c t="str"><v>eggs</v></c></row>`, "row 2 follows row 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read("retail.xlsx", bytes.NewReader(sheetOnly(t, tt.rows)), Options{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "parse worksheet xl/worksheets/sheet1.xml")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRead_XLSXLastColumn(t *testing.T) {
	rows := `<row r="1"><c r="A1" t="str"><v>Items</v></c></row>` +
		`<row r="2"><c r="A2" t="str"><v>milk</v></c><c r="XFD2"><v>1</v></c></row>`
	tbl, err := Read("retail.xlsx", bytes.NewReader(sheetOnly(t, rows)), Options{})
	require.NoError(t, err)
	assert.Len(t, tbl.Header, maxColumns)
	assert.Equal(t, "1", tbl.Rows[0].Cells[maxColumns-1].Value)
}

func TestRead_XLSXTooManyCells(t *testing.T) {
	// A wide header and one row at the last row number pad out to far more
	// cells than MaxCells.
	rows := `<row r="1"><c r="A1" t="str"><v>Items</v></c><c r="XFD1" t="str"><v>Last</v></c></row>` +
		`<row r="1048576"><c r="A1048576" t="str"><v>milk</v></c></row>`
	_, err := Read("retail.xlsx", bytes.NewReader(sheetOnly(t, rows)), Options{})
	assert.ErrorIs(t, err, ErrTooLarge)
}
