package importer

import (
	"fmt"
	"io"
	"strings"

	"bento-route-planner/internal/models"
)

// GLUGSchema names the header labels of a GLUG order export
type GLUGSchema struct {
	Name       string
	Prefecture string
	City       string
	Street     string
	Route      string
}

// DefaultGLUGSchema matches the facility export column labels
var DefaultGLUGSchema = GLUGSchema{
	Name:       "施設名",
	Prefecture: "都道府県",
	City:       "市区町村",
	Street:     "住所",
	Route:      "ルート名",
}

// ParseGLUGSchema reads five comma-separated labels in the order
// name, prefecture, city, street, route.
func ParseGLUGSchema(s string) (GLUGSchema, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 5 {
		return GLUGSchema{}, fmt.Errorf("GLUG schema needs 5 column labels, got %d", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return GLUGSchema{}, fmt.Errorf("GLUG schema label %d is empty", i+1)
		}
	}
	return GLUGSchema{
		Name:       parts[0],
		Prefecture: parts[1],
		City:       parts[2],
		Street:     parts[3],
		Route:      parts[4],
	}, nil
}

func (s GLUGSchema) columns() []column {
	return []column{
		{field: fieldName, labels: []string{s.Name}},
		{field: fieldPrefecture, labels: []string{s.Prefecture}},
		{field: fieldCity, labels: []string{s.City}},
		{field: fieldStreet, labels: []string{s.Street}},
		{field: fieldRoute, labels: []string{s.Route}},
	}
}

// ReadGLUG parses a GLUG order export. The full address is
// prefecture + city + street. Nothing is returned on a header mismatch.
func ReadGLUG(r io.Reader, schema GLUGSchema, opts Options) (*Result, error) {
	text, err := decodeText(r)
	if err != nil {
		return nil, err
	}

	header, rows, err := readRecords("GLUG", text)
	if err != nil {
		return nil, err
	}

	cols, err := resolveHeader("GLUG", header, schema.columns())
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
			Address:  cols.get(rec, fieldPrefecture) + cols.get(rec, fieldCity) + cols.get(rec, fieldStreet),
			RouteTag: cols.get(rec, fieldRoute),
		})
	}

	logResult("GLUG", c.result)
	return c.result, nil
}
