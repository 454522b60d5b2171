package gazetteer

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/jp-address-parser/app/models"
	"gopkg.in/yaml.v3"
)

//go:embed data/gazetteer.yaml
var gazetteerYAML []byte

type gazetteerFile struct {
	Version     string          `yaml:"version"`
	Prefectures []gazetteerPref `yaml:"prefectures"`
}

type gazetteerPref struct {
	Name   string          `yaml:"name"`
	Cities []gazetteerCity `yaml:"cities"`
}

type gazetteerCity struct {
	Name  string   `yaml:"name"`
	Towns []string `yaml:"towns,omitempty"`
}

// EmbeddedSource serves an in-memory gazetteer. It is read-only after
// construction and safe for concurrent use.
type EmbeddedSource struct {
	version string
	prefs   []string
	cities  map[string][]string
	towns   map[string][]string
}

// NewEmbeddedSource loads the gazetteer compiled into the binary.
func NewEmbeddedSource() (*EmbeddedSource, error) {
	return parseGazetteer(gazetteerYAML)
}

// LoadEmbeddedSourceFile loads a gazetteer in the same YAML layout from disk.
func LoadEmbeddedSourceFile(path string) (*EmbeddedSource, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gazetteer: read %s: %w", path, err)
	}
	return parseGazetteer(b)
}

// NewEmbeddedSourceFromTowns builds a source from flat rows, e.g. a CSV import.
func NewEmbeddedSourceFromTowns(version string, rows []models.GazetteerTown) *EmbeddedSource {
	s := newEmptySource(version)
	for _, row := range rows {
		s.add(row.Prefecture, row.City, row.Town)
	}
	return s
}

func parseGazetteer(b []byte) (*EmbeddedSource, error) {
	var file gazetteerFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("gazetteer: parse: %w", err)
	}
	if len(file.Prefectures) == 0 {
		return nil, fmt.Errorf("gazetteer: no prefectures defined")
	}
	s := newEmptySource(file.Version)
	for _, pref := range file.Prefectures {
		s.add(pref.Name, "", "")
		for _, city := range pref.Cities {
			s.add(pref.Name, city.Name, "")
			for _, town := range city.Towns {
				s.add(pref.Name, city.Name, town)
			}
		}
	}
	return s, nil
}

func newEmptySource(version string) *EmbeddedSource {
	return &EmbeddedSource{
		version: version,
		cities:  make(map[string][]string),
		towns:   make(map[string][]string),
	}
}

func (s *EmbeddedSource) add(pref, city, town string) {
	if pref == "" {
		return
	}
	if _, ok := s.cities[pref]; !ok {
		s.prefs = append(s.prefs, pref)
		s.cities[pref] = nil
	}
	if city == "" {
		return
	}
	key := townKey(pref, city)
	if _, ok := s.towns[key]; !ok {
		s.cities[pref] = append(s.cities[pref], city)
		s.towns[key] = nil
	}
	if town != "" {
		s.towns[key] = append(s.towns[key], town)
	}
}

// Version identifies the loaded data set.
func (s *EmbeddedSource) Version() string { return s.version }

func (s *EmbeddedSource) Prefectures(context.Context) ([]string, error) {
	return s.prefs, nil
}

func (s *EmbeddedSource) Cities(_ context.Context, pref string) ([]string, error) {
	return s.cities[pref], nil
}

func (s *EmbeddedSource) Towns(_ context.Context, pref, city string) ([]string, error) {
	return s.towns[townKey(pref, city)], nil
}

// Rows flattens the gazetteer into rows. Cities without towns yield one row
// with an empty Town so that exports keep every municipality.
func (s *EmbeddedSource) Rows() []models.GazetteerTown {
	var rows []models.GazetteerTown
	for _, pref := range s.prefs {
		for _, city := range s.cities[pref] {
			towns := s.towns[townKey(pref, city)]
			if len(towns) == 0 {
				rows = append(rows, models.NewGazetteerTown(pref, city, ""))
				continue
			}
			for _, town := range towns {
				rows = append(rows, models.NewGazetteerTown(pref, city, town))
			}
		}
	}
	return rows
}

// WriteYAML serializes the source in the layout NewEmbeddedSource reads.
func (s *EmbeddedSource) WriteYAML(w io.Writer) error {
	var file gazetteerFile
	file.Version = s.version
	for _, pref := range s.prefs {
		p := gazetteerPref{Name: pref}
		for _, city := range s.cities[pref] {
			p.Cities = append(p.Cities, gazetteerCity{Name: city, Towns: s.towns[townKey(pref, city)]})
		}
		file.Prefectures = append(file.Prefectures, p)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(&file)
}

func townKey(pref, city string) string {
	return pref + "|" + city
}
