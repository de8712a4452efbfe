package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"basket-dashboard/internal/models"
)

func readCSV(r io.Reader, delim rune) ([]string, [][]models.Cell, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrNoHeader
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	var rows [][]models.Cell
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		cells := make([]models.Cell, len(rec))
		for i, v := range rec {
			if v == "" {
				continue
			}
			cells[i] = models.Cell{Value: v, Kind: models.CellString}
		}
		rows = append(rows, cells)
	}
	return header, rows, nil
}
