// Package tables holds the fixed lookup data of the search core: gazetteer,
// keyword tables, domain tiers, known zones. The data ships embedded as YAML
// and is parsed once; a substitute file can be loaded for tests or tuning.
package tables

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type VerticalTable struct {
	TierA    []string `yaml:"tier_a"`
	TierB    []string `yaml:"tier_b"`
	Keywords []string `yaml:"keywords"`
	Hint     string   `yaml:"hint"`
}

type Place struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

type Phrase struct {
	Phrase string `yaml:"phrase"`
	Value  string `yaml:"value"`
}

type Qualifier struct {
	Phrase  string `yaml:"phrase"`
	Tag     string `yaml:"tag"`
	Premium bool   `yaml:"premium"`
}

type KnownZone struct {
	City     string   `yaml:"city"`
	Tag      string   `yaml:"tag"`
	Matching []string `yaml:"matching"`
	Excluded []string `yaml:"excluded"`
}

type Tables struct {
	VerticalOrder []string                 `yaml:"vertical_order"`
	Verticals     map[string]VerticalTable `yaml:"verticals"`

	Places            []Place           `yaml:"places"`
	LocationStopwords []string          `yaml:"location_stopwords"`
	PropertyTypes     []Phrase          `yaml:"property_types"`
	TypeVariants      map[string]string `yaml:"type_variants"`
	BroaderTypes      map[string]string `yaml:"broader_types"`
	RentKeywords      []string          `yaml:"rent_keywords"`
	SaleKeywords      []string          `yaml:"sale_keywords"`
	Features          []Phrase          `yaml:"features"`
	ZoneQualifiers    []Qualifier       `yaml:"zone_qualifiers"`
	ApproxMarkers     []string          `yaml:"approx_markers"`

	KnownZones           []KnownZone `yaml:"known_zones"`
	ZoneStopwords        []string    `yaml:"zone_stopwords"`
	PremiumIndicators    []string    `yaml:"premium_indicators"`
	NonPremiumIndicators []string    `yaml:"non_premium_indicators"`

	NearbyLocations map[string][]string `yaml:"nearby_locations"`

	Blocklist        []string `yaml:"blocklist"`
	TrackingParams   []string `yaml:"tracking_params"`
	TrackingPrefixes []string `yaml:"tracking_prefixes"`
	Stopwords        []string `yaml:"stopwords"`
	ListingSignals   []string `yaml:"listing_signals"`
	InfoTitleMarkers []string `yaml:"info_title_markers"`

	Abbreviations map[string]string `yaml:"abbreviations"`
	NoisePhrases  []string          `yaml:"noise_phrases"`
}

var (
	defaultOnce sync.Once
	defaultTbl  *Tables
	defaultErr  error
)

// Default returns the embedded tables. It panics if the embedded data is
// malformed, which is a build defect.
func Default() *Tables {
	defaultOnce.Do(func() {
		defaultTbl, defaultErr = Parse(defaultsYAML)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("tables: embedded defaults: %v", defaultErr))
	}
	return defaultTbl
}

// Load parses tables from path; an empty path yields the embedded defaults.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables file: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parse tables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Tables) Validate() error {
	if len(t.VerticalOrder) == 0 {
		return fmt.Errorf("tables: vertical_order is empty")
	}
	for _, v := range t.VerticalOrder {
		if _, ok := t.Verticals[v]; !ok {
			return fmt.Errorf("tables: vertical %q listed in order but not defined", v)
		}
	}
	if _, ok := t.Verticals["real_estate"]; !ok {
		return fmt.Errorf("tables: real_estate vertical is required")
	}
	return nil
}
