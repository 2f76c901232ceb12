package band

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultDecoder is used for frequencies outside every table entry
	DefaultDecoder = "rtl_fm"

	// UnknownBand labels frequencies outside every table entry
	UnknownBand = "Unknown"

	defaultDescription = "Generic FM demod"
)

//go:embed bands.yaml
var defaultTableYAML []byte

var defaultTable = sync.OnceValues(func() (*Table, error) {
	return ParseTable(bytes.NewReader(defaultTableYAML))
})

// Definition is one entry of the routing table. Start and End are inclusive, in Hz.
type Definition struct {
	Start       float64 `yaml:"start" json:"start"`
	End         float64 `yaml:"end" json:"end"`
	Name        string  `yaml:"name" json:"name"`
	Decoder     string  `yaml:"decoder" json:"decoder"`
	Description string  `yaml:"description" json:"description"`
}

// Contains reports whether freq falls within the inclusive interval of the definition
func (d Definition) Contains(freq float64) bool {
	return d.Start <= freq && freq <= d.End
}

// Route is the outcome of a routing lookup
type Route struct {
	Decoder     string `yaml:"decoder" json:"decoder"`
	Band        string `yaml:"band" json:"band"`
	Description string `yaml:"description" json:"description"`
}

type tableFile struct {
	Default *Route       `yaml:"default"`
	Bands   []Definition `yaml:"bands"`
}

// Table is an ordered list of band definitions. Entries may overlap;
// a lookup scans them in declaration order and the first match wins.
type Table struct {
	bands    []Definition
	fallback Route
}

// NewTable validates defs and builds a Table that keeps their order.
// Frequencies matching no entry are routed to the default decoder.
func NewTable(defs []Definition) (*Table, error) {
	for i, d := range defs {
		if d.End < d.Start {
			return nil, fmt.Errorf("band.Table: entry %d (%s): end must not be lower than start: %g < %g", i, d.Name, d.End, d.Start)
		}
		if d.Decoder == "" {
			return nil, fmt.Errorf("band.Table: entry %d (%s): decoder is required", i, d.Name)
		}
	}

	return &Table{
		bands: slices.Clone(defs),
		fallback: Route{
			Decoder:     DefaultDecoder,
			Band:        UnknownBand,
			Description: defaultDescription,
		},
	}, nil
}

// DefaultTable returns the built-in routing table
func DefaultTable() *Table {
	t, err := defaultTable()
	if err != nil {
		panic(fmt.Sprintf("band: embedded table is invalid: %s", err))
	}
	return t
}

// LoadTable reads a YAML routing table from path
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening band table: %w", err)
	}
	defer f.Close()

	return ParseTable(f)
}

// ParseTable decodes a YAML routing table
func ParseTable(r io.Reader) (*Table, error) {
	var file tableFile

	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding band table: %w", err)
	}
	if len(file.Bands) == 0 {
		return nil, errors.New("band.Table: no bands defined")
	}

	t, err := NewTable(file.Bands)
	if err != nil {
		return nil, err
	}

	if file.Default != nil {
		if file.Default.Decoder != "" {
			t.fallback.Decoder = file.Default.Decoder
		}
		if file.Default.Band != "" {
			t.fallback.Band = file.Default.Band
		}
		if file.Default.Description != "" {
			t.fallback.Description = file.Default.Description
		}
	}

	return t, nil
}

// Route returns the first entry whose interval contains freq, or the default route
func (t *Table) Route(freq float64) Route {
	for _, d := range t.bands {
		if d.Contains(freq) {
			return Route{
				Decoder:     d.Decoder,
				Band:        d.Name,
				Description: d.Description,
			}
		}
	}
	return t.fallback
}

// Definitions returns a copy of the table entries in lookup order
func (t *Table) Definitions() []Definition {
	return slices.Clone(t.bands)
}
