package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/samirrijal/walkguide/internal/core/domain"
)

// LoadFile reads places from a .csv, .yaml or .yml file.
func LoadFile(path string) ([]domain.PointOfInterest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ReadYAML(f)
	case ".csv":
		return ReadCSV(f)
	}
	return nil, fmt.Errorf("%w: unsupported catalog format %q", domain.ErrInvalidInput, filepath.Ext(path))
}

// ReadCSV parses a header-led CSV with the columns name, lat, lon, category
// and desc (or description). Other columns are ignored.
func ReadCSV(r io.Reader) ([]domain.PointOfInterest, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: catalog is empty", domain.ErrInvalidInput)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := col["desc"]; !ok {
		if i, ok := col["description"]; ok {
			col["desc"] = i
		}
	}
	for _, required := range []string{"name", "lat", "lon", "category"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%w: catalog is missing column %q", domain.ErrInvalidInput, required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var places []domain.PointOfInterest
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		line, _ := cr.FieldPos(0)

		lat, err := strconv.ParseFloat(field(rec, "lat"), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: lat %q is not a number", domain.ErrInvalidInput, line, field(rec, "lat"))
		}
		lon, err := strconv.ParseFloat(field(rec, "lon"), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: lon %q is not a number", domain.ErrInvalidInput, line, field(rec, "lon"))
		}

		places = append(places, domain.PointOfInterest{
			Name:        field(rec, "name"),
			Category:    field(rec, "category"),
			Description: field(rec, "desc"),
			Location:    domain.GeoPoint{Lat: lat, Lon: lon},
		})
		if err := places[len(places)-1].Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}

	if err := checkUnique(places); err != nil {
		return nil, err
	}
	return places, nil
}

type yamlPlace struct {
	Name        string   `yaml:"name"`
	Lat         *float64 `yaml:"lat"`
	Lon         *float64 `yaml:"lon"`
	Category    string   `yaml:"category"`
	Description string   `yaml:"description"`
	Desc        string   `yaml:"desc"`
}

// ReadYAML parses either a top-level list of places or a document with a
// "places" key.
func ReadYAML(r io.Reader) ([]domain.PointOfInterest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var rows []yamlPlace
	if err := yaml.Unmarshal(data, &rows); err != nil {
		var doc struct {
			Places []yamlPlace `yaml:"places"`
		}
		if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
			return nil, fmt.Errorf("%w: parse yaml: %v", domain.ErrInvalidInput, err)
		}
		rows = doc.Places
	}

	places := make([]domain.PointOfInterest, 0, len(rows))
	for i, row := range rows {
		if row.Lat == nil || row.Lon == nil {
			return nil, fmt.Errorf("%w: entry %d (%q): lat and lon are required", domain.ErrInvalidInput, i+1, row.Name)
		}
		desc := row.Description
		if desc == "" {
			desc = row.Desc
		}
		p := domain.PointOfInterest{
			Name:        strings.TrimSpace(row.Name),
			Category:    strings.TrimSpace(row.Category),
			Description: strings.TrimSpace(desc),
			Location:    domain.GeoPoint{Lat: *row.Lat, Lon: *row.Lon},
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		places = append(places, p)
	}

	if err := checkUnique(places); err != nil {
		return nil, err
	}
	return places, nil
}

func checkUnique(places []domain.PointOfInterest) error {
	seen := make(map[string]struct{}, len(places))
	for _, p := range places {
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: duplicate place name %q", domain.ErrInvalidInput, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// WriteCSV writes places in the format ReadCSV accepts.
func WriteCSV(w io.Writer, places []domain.PointOfInterest) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "lat", "lon", "category", "desc"}); err != nil {
		return err
	}
	for _, p := range places {
		if err := cw.Write([]string{
			p.Name,
			strconv.FormatFloat(p.Location.Lat, 'f', -1, 64),
			strconv.FormatFloat(p.Location.Lon, 'f', -1, 64),
			p.Category,
			p.Description,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
