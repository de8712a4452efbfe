package basket

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"basket-dashboard/internal/models"
)

// ItemSeparator splits the transaction cell into item tokens. Tokens are not
// trimmed, so "milk, bread" yields "milk" and " bread".
const ItemSeparator = ","

var (
	ErrNoColumns      = errors.New("table has no columns")
	ErrNoTransactions = errors.New("no transactions to encode")
	ErrNotFitted      = errors.New("encoder has not been fitted")
)

// CellError reports a transaction cell that cannot be split into items.
type CellError struct {
	Row  int
	Kind models.CellKind
}

func (e *CellError) Error() string {
	if e.Kind == models.CellEmpty {
		return fmt.Sprintf("row %d: transaction cell is empty", e.Row)
	}
	return fmt.Sprintf("row %d: transaction cell holds a %s value, expected text", e.Row, e.Kind)
}

// Transactions splits the first column of every row into item tokens.
func Transactions(t *models.Table) ([][]string, error) {
	if len(t.Header) == 0 {
		return nil, ErrNoColumns
	}
	out := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		var c models.Cell
		if len(r.Cells) > 0 {
			c = r.Cells[0]
		}
		if c.Kind != models.CellString {
			return nil, &CellError{Row: r.Index, Kind: c.Kind}
		}
		out = append(out, strings.Split(c.Value, ItemSeparator))
	}
	return out, nil
}

// Matrix is a one-hot basket matrix: Rows[i][j] reports whether transaction i
// contains item Columns[j].
type Matrix struct {
	Columns []string
	Rows    [][]bool
}

// Encoder learns the item vocabulary of a transaction list and one-hot encodes
// transactions against it.
type Encoder struct {
	columns []string
	index   map[string]int
}

// Fit records the sorted set of distinct items.
func (e *Encoder) Fit(tx [][]string) *Encoder {
	seen := map[string]struct{}{}
	for _, items := range tx {
		for _, it := range items {
			seen[it] = struct{}{}
		}
	}
	e.columns = make([]string, 0, len(seen))
	for it := range seen {
		e.columns = append(e.columns, it)
	}
	slices.Sort(e.columns)
	e.index = make(map[string]int, len(e.columns))
	for i, it := range e.columns {
		e.index[it] = i
	}
	return e
}

func (e *Encoder) Columns() []string { return e.columns }

// Transform encodes tx against the fitted vocabulary. Unknown items are
// ignored.
func (e *Encoder) Transform(tx [][]string) (Matrix, error) {
	if e.index == nil {
		return Matrix{}, ErrNotFitted
	}
	m := Matrix{Columns: e.columns, Rows: make([][]bool, len(tx))}
	for i, items := range tx {
		row := make([]bool, len(e.columns))
		for _, it := range items {
			if j, ok := e.index[it]; ok {
				row[j] = true
			}
		}
		m.Rows[i] = row
	}
	return m, nil
}

// Encode fits a fresh encoder on tx and transforms it.
func Encode(tx [][]string) (Matrix, error) {
	if len(tx) == 0 {
		return Matrix{}, ErrNoTransactions
	}
	var e Encoder
	return e.Fit(tx).Transform(tx)
}
