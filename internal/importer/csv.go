package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"bento-route-planner/internal/models"
)

// CSVHeader is the header row written by WriteCSV
var CSVHeader = []string{"name", "address", "route"}

var csvColumns = []column{
	{field: fieldName, labels: []string{"name", "名称"}},
	{field: fieldAddress, labels: []string{"address", "住所"}},
	{field: fieldRoute, labels: []string{"route", "ルート"}},
}

// ReadCSV parses a name,address,route file such as one written by WriteCSV.
// Later rows with the same name replace earlier ones.
func ReadCSV(r io.Reader, opts Options) (*Result, error) {
	text, err := decodeText(r)
	if err != nil {
		return nil, err
	}

	header, rows, err := readRecords("CSV", text)
	if err != nil {
		return nil, err
	}

	cols, err := resolveHeader("CSV", header, csvColumns)
	if err != nil {
		return nil, err
	}

	c := newCollector(opts)
	for _, rec := range rows {
		if blankRecord(rec) {
			continue
		}
		c.add(models.Destination{
			Name:     cols.get(rec, fieldName),
			Address:  cols.get(rec, fieldAddress),
			RouteTag: cols.get(rec, fieldRoute),
		})
	}

	logResult("CSV", c.result)
	return c.result, nil
}

// WriteCSV writes destinations as UTF-8 with a BOM so spreadsheet tools pick
// the right encoding. The depot is left out and rows are ordered by name.
func WriteCSV(w io.Writer, destinations []models.Destination, depotName string) error {
	rows := make([]models.Destination, 0, len(destinations))
	for _, d := range destinations {
		if d.Name != depotName {
			rows = append(rows, d)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Name < rows[j].Name
	})

	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, d := range rows {
		if err := cw.Write([]string{d.Name, d.Address, d.RouteTag}); err != nil {
			return fmt.Errorf("failed to write row %q: %w", d.Name, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}
