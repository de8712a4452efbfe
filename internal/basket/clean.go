package basket

import (
	"strconv"
	"strings"

	"basket-dashboard/internal/models"
)

// rowKey encodes a row so that two rows share a key exactly when every cell
// has the same kind and value. Empty cells compare equal to each other.
func rowKey(r models.Row) string {
	var b strings.Builder
	for _, c := range r.Cells {
		b.WriteString(strconv.Itoa(int(c.Kind)))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(len(c.Value)))
		b.WriteByte(':')
		b.WriteString(c.Value)
	}
	return b.String()
}

// CountDuplicates returns how many rows repeat an earlier row.
func CountDuplicates(t *models.Table) int {
	seen := make(map[string]struct{}, len(t.Rows))
	dups := 0
	for _, r := range t.Rows {
		k := rowKey(r)
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}

// DropDuplicates returns a copy of t without repeated rows, keeping the first
// occurrence of each.
func DropDuplicates(t *models.Table) *models.Table {
	out := &models.Table{Name: t.Name, Header: t.Header, Rows: make([]models.Row, 0, len(t.Rows))}
	seen := make(map[string]struct{}, len(t.Rows))
	for _, r := range t.Rows {
		k := rowKey(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out.Rows = append(out.Rows, r)
	}
	return out
}

// MissingCounts returns the number of empty cells per column in header order.
func MissingCounts(t *models.Table) []models.MissingCount {
	out := make([]models.MissingCount, len(t.Header))
	for i, h := range t.Header {
		out[i].Column = h
	}
	for _, r := range t.Rows {
		for i := range out {
			if i >= len(r.Cells) || r.Cells[i].Kind == models.CellEmpty {
				out[i].Missing++
			}
		}
	}
	return out
}

// Clean drops duplicate rows and reports what it found. Missing counts are
// taken after deduplication.
func Clean(t *models.Table) (*models.Table, models.CleaningSummary) {
	sum := models.CleaningSummary{
		RowsBefore:       len(t.Rows),
		DuplicatesBefore: CountDuplicates(t),
	}
	cleaned := DropDuplicates(t)
	sum.RowsAfter = len(cleaned.Rows)
	sum.DuplicatesAfter = CountDuplicates(cleaned)
	sum.Missing = MissingCounts(cleaned)
	return cleaned, sum
}
