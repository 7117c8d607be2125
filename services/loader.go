package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/blavejr/finadvisor/models"
)

// FinancialDataLoader reads the historical advisory CSV.
type FinancialDataLoader struct {
	Path string
}

// NewFinancialDataLoader fails when path does not exist. The returned error
// wraps fs.ErrNotExist.
func NewFinancialDataLoader(path string) (*FinancialDataLoader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file %s not found: %w", path, err)
	}
	return &FinancialDataLoader{Path: path}, nil
}

// Load returns one record per data row, keyed by the header row.
func (l *FinancialDataLoader) Load() ([]models.Record, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", l.Path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return []models.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	records := []models.Record{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row %d: %w", len(records)+1, err)
		}

		record := make(models.Record, len(header))
		for i, column := range header {
			if i < len(row) {
				record[column] = row[i]
			} else {
				record[column] = ""
			}
		}
		records = append(records, record)
	}

	log.Printf("Loaded %d records from %s", len(records), l.Path)
	return records, nil
}
