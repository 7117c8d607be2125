package models

import "strings"

// Record is one row of the historical advisory CSV, keyed by column header.
type Record map[string]string

// Get returns the trimmed cell for column and whether the column is present.
func (r Record) Get(column string) (string, bool) {
	v, ok := r[column]
	return strings.TrimSpace(v), ok
}
