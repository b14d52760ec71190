package importer

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// ErrSchemaMismatch is returned when a file's header row lacks required columns
type ErrSchemaMismatch struct {
	Format  string
	Missing []string
	Header  []string
}

func (e *ErrSchemaMismatch) Error() string {
	return fmt.Sprintf("%s import: missing required columns: %s", e.Format, strings.Join(e.Missing, ", "))
}

// column is one required field and the header labels accepted for it
type column struct {
	field  string
	labels []string
}

// columnIndex maps field names to header positions
type columnIndex map[string]int

// resolveHeader locates every required column in header by label.
// Labels are compared after trimming spaces and a leading BOM, case-insensitively.
func resolveHeader(format string, header []string, columns []column) (columnIndex, error) {
	normalized := lo.Map(header, func(h string, _ int) string {
		return normalizeLabel(h)
	})

	index := make(columnIndex, len(columns))
	var missing []string
	for _, c := range columns {
		pos := -1
		for _, label := range c.labels {
			if i := lo.IndexOf(normalized, normalizeLabel(label)); i >= 0 {
				pos = i
				break
			}
		}
		if pos < 0 {
			missing = append(missing, c.labels[0])
			continue
		}
		index[c.field] = pos
	}

	if len(missing) > 0 {
		return nil, &ErrSchemaMismatch{Format: format, Missing: missing, Header: header}
	}
	return index, nil
}

// get returns the trimmed value of field in record, or "" when the row is short
func (ci columnIndex) get(record []string, field string) string {
	i, ok := ci[field]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
}
