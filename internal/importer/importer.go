package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"bento-route-planner/internal/models"
)

// Options controls which rows an import keeps
type Options struct {
	// DepotName rows are never imported
	DepotName string
	// RouteTag keeps only rows with this tag; empty or models.AllRouteTags keeps all
	RouteTag string
}

// Result is the outcome of parsing an import file
type Result struct {
	Destinations []models.Destination `json:"destinations"`
	Skipped      int                  `json:"skipped"`
}

// Imported is the number of destinations to be written
func (r *Result) Imported() int {
	return len(r.Destinations)
}

const (
	fieldName       = "name"
	fieldAddress    = "address"
	fieldRoute      = "route"
	fieldPrefecture = "prefecture"
	fieldCity       = "city"
	fieldStreet     = "street"
)

// decodeText returns the file as UTF-8. Valid UTF-8 is used as is (minus a
// BOM); anything else is decoded as Shift_JIS, the spreadsheet default here.
func decodeText(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}

	if utf8.Valid(raw) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode UTF-8: %w", err)
		}
		return out, nil
	}

	out, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Shift_JIS: %w", err)
	}
	return out, nil
}

// readRecords parses CSV text and splits off the header row
func readRecords(format string, text []byte) ([]string, [][]string, error) {
	reader := csv.NewReader(bytes.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s file: %w", format, err)
	}

	for i, rec := range records {
		if !blankRecord(rec) {
			return rec, records[i+1:], nil
		}
	}
	return nil, nil, &ErrSchemaMismatch{Format: format, Missing: []string{"header row"}}
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// collector keeps the last row per name in first-seen order
type collector struct {
	opts   Options
	index  map[string]int
	result *Result
}

func newCollector(opts Options) *collector {
	return &collector{
		opts:   opts,
		index:  make(map[string]int),
		result: &Result{Destinations: []models.Destination{}},
	}
}

func (c *collector) add(d models.Destination) {
	if d.Name == "" || d.Address == "" || d.Name == c.opts.DepotName || !d.MatchesTag(c.opts.RouteTag) {
		c.result.Skipped++
		return
	}
	if i, ok := c.index[d.Name]; ok {
		c.result.Destinations[i] = d
		return
	}
	c.index[d.Name] = len(c.result.Destinations)
	c.result.Destinations = append(c.result.Destinations, d)
}

// IsSchemaError reports whether err is a header mismatch
func IsSchemaError(err error) bool {
	var serr *ErrSchemaMismatch
	return errors.As(err, &serr)
}

func logResult(format string, res *Result) {
	log.Printf("[IMPORT] %s parsed: imported=%d skipped=%d", format, res.Imported(), res.Skipped)
}
