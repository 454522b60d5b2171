package normalizer

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed data/rules.yaml
var rulesYAML []byte

// ChomeNumeral pairs a kanji numeral with its arabic spelling.
type ChomeNumeral struct {
	Kanji  string `yaml:"kanji"`
	Arabic string `yaml:"arabic"`
}

// CountryRules holds the country markers in priority order.
type CountryRules struct {
	Full       string   `yaml:"full"`
	Short      string   `yaml:"short"`
	Romanized  []string `yaml:"romanized"`
	Exceptions []string `yaml:"exceptions"`
}

// MunicipalityRules holds the glyphs used to refine the gazetteer city field.
type MunicipalityRules struct {
	Tokyo       string `yaml:"tokyo"`
	CountyGlyph string `yaml:"county_glyph"`
	WardGlyph   string `yaml:"ward_glyph"`
	CityGlyph   string `yaml:"city_glyph"`
}

// ChomeRules holds the chome suffix and the supported numerals.
type ChomeRules struct {
	Suffix   string         `yaml:"suffix"`
	Numerals []ChomeNumeral `yaml:"numerals"`
}

// PatternRules holds regular expressions as source text.
type PatternRules struct {
	PostalCode string `yaml:"postal_code"`
	Floor      string `yaml:"floor"`
}

// RulesConfig is the read-only lookup data shared by every pipeline stage.
// It is built once and passed to constructors; nothing mutates it afterwards.
type RulesConfig struct {
	Version      string            `yaml:"version"`
	NoiseTokens  []string          `yaml:"noise_tokens"`
	Country      CountryRules      `yaml:"country"`
	Municipality MunicipalityRules `yaml:"municipality"`
	Chome        ChomeRules        `yaml:"chome"`
	Patterns     PatternRules      `yaml:"patterns"`
}

// LoadRulesConfig loads the rules embedded in the binary.
func LoadRulesConfig() (*RulesConfig, error) {
	return parseRules(rulesYAML)
}

// LoadRulesConfigFile loads rules from a YAML file on disk. Keys missing from the
// file keep their embedded values.
func LoadRulesConfigFile(path string) (*RulesConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("normalizer: read rules %s: %w", path, err)
	}
	config, err := parseRules(rulesYAML)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, config); err != nil {
		return nil, fmt.Errorf("normalizer: parse rules %s: %w", path, err)
	}
	return config, config.validate()
}

// MustLoadRulesConfig is LoadRulesConfig for tests and package init code.
func MustLoadRulesConfig() *RulesConfig {
	config, err := LoadRulesConfig()
	if err != nil {
		panic(err)
	}
	return config
}

func parseRules(b []byte) (*RulesConfig, error) {
	config := &RulesConfig{}
	if err := yaml.Unmarshal(b, config); err != nil {
		return nil, fmt.Errorf("normalizer: parse embedded rules: %w", err)
	}
	return config, config.validate()
}

func (c *RulesConfig) validate() error {
	switch {
	case c.Country.Full == "" || c.Country.Short == "":
		return fmt.Errorf("normalizer: country markers are required")
	case c.Municipality.CountyGlyph == "" || c.Municipality.WardGlyph == "" || c.Municipality.CityGlyph == "":
		return fmt.Errorf("normalizer: municipality glyphs are required")
	case c.Chome.Suffix == "" || len(c.Chome.Numerals) == 0:
		return fmt.Errorf("normalizer: chome table is empty")
	case c.Patterns.PostalCode == "" || c.Patterns.Floor == "":
		return fmt.Errorf("normalizer: postal and floor patterns are required")
	}
	return nil
}
