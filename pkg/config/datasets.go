package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/MELR22/rissa-plotter/pkg/errs"
	"github.com/MELR22/rissa-plotter/pkg/ledge"
	"github.com/MELR22/rissa-plotter/pkg/observation"
	"github.com/MELR22/rissa-plotter/pkg/timegrid"
)

// Dataset describes one observation dataset served by the process
type Dataset struct {
	Name            string   `yaml:"name" validate:"required,max=64,alphanum"`
	EntityDimension string   `yaml:"entity_dimension" validate:"required,max=64"`
	Fields          []string `yaml:"fields" validate:"required,min=1,max=32,unique,dive,required"`
	Catalogue       []string `yaml:"catalogue" validate:"omitempty,unique,dive,required"`
	Years           []int    `yaml:"years" validate:"omitempty,unique,dive,gte=1900,lte=2200"`

	// Aliases rewrites entity names at ingest, e.g. renamed sites
	Aliases map[string]string `yaml:"aliases" validate:"omitempty,dive,keys,required,endkeys,required"`

	// LedgeTally derives nest and chick counts from ledge statuses
	LedgeTally bool `yaml:"ledge_tally"`

	// IncludeAON counts apparently occupied nests as nests. Defaults to true.
	IncludeAON *bool `yaml:"include_aon"`

	Frequency  string   `yaml:"frequency" validate:"omitempty,max=8"`
	Percentile *float64 `yaml:"percentile" validate:"omitempty,gte=0,lte=1"`
}

// Datasets is the top level of a datasets file
type Datasets struct {
	Datasets []Dataset `yaml:"datasets" validate:"required,min=1,unique=Name,dive"`
}

// Schema returns the observation schema for the dataset
func (d Dataset) Schema() observation.Schema {
	return observation.Schema{
		Name:            d.Name,
		EntityDimension: d.EntityDimension,
		Fields:          append([]string(nil), d.Fields...),
		Catalogue:       append([]string(nil), d.Catalogue...),
		Years:           append([]int(nil), d.Years...),
	}
}

// CountAON reports whether apparently occupied nests count as nests
func (d Dataset) CountAON() bool {
	return d.IncludeAON == nil || *d.IncludeAON
}

// DefaultFrequency returns the dataset's grid frequency or the global default
func (d Dataset) DefaultFrequency() string {
	if d.Frequency == "" {
		return QueryDefaultFrequency
	}
	return d.Frequency
}

// DefaultPercentile returns the dataset's percentile or fallback
func (d Dataset) DefaultPercentile(fallback float64) float64 {
	if d.Percentile == nil {
		return fallback
	}
	return *d.Percentile
}

// Canonical maps an entity through the dataset's aliases
func (d Dataset) Canonical(entity string) string {
	if to, ok := d.Aliases[entity]; ok {
		return to
	}
	return entity
}

// Lookup returns the named dataset
func (ds Datasets) Lookup(name string) (Dataset, bool) {
	for _, d := range ds.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return Dataset{}, false
}

// Names returns dataset names in file order
func (ds Datasets) Names() []string {
	out := make([]string, len(ds.Datasets))
	for i, d := range ds.Datasets {
		out[i] = d.Name
	}
	return out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints, frequencies and that ledge datasets
// carry the derived fields.
func (ds Datasets) Validate() error {
	if err := validate.Struct(ds); err != nil {
		return errs.ErrConfiguration.New(fmt.Sprintf("datasets: %v", err))
	}
	for _, d := range ds.Datasets {
		if _, err := timegrid.ParseFrequency(d.DefaultFrequency()); err != nil {
			return errs.ErrConfiguration.New(fmt.Sprintf("dataset %q: %v", d.Name, err))
		}
		if d.LedgeTally {
			schema := d.Schema()
			for _, f := range ledge.Fields {
				if !schema.HasField(f) {
					return errs.ErrConfiguration.New(fmt.Sprintf("dataset %q tallies ledges but lacks field %q", d.Name, f))
				}
			}
		}
	}
	return nil
}

// ParseDatasets decodes and validates a YAML datasets document
func ParseDatasets(data []byte) (Datasets, error) {
	var ds Datasets
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return Datasets{}, errs.ErrConfiguration.New(fmt.Sprintf("datasets: %v", err))
	}
	if err := ds.Validate(); err != nil {
		return Datasets{}, err
	}
	return ds, nil
}

// LoadDatasets reads the datasets file at path. An empty path yields the
// built-in defaults.
func LoadDatasets(path string) (Datasets, error) {
	if path == "" {
		return DefaultDatasets(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Datasets{}, fmt.Errorf("read datasets file: %w", err)
	}
	return ParseDatasets(data)
}

// DefaultDatasets returns the kittiwake city and hotel datasets
func DefaultDatasets() Datasets {
	return Datasets{Datasets: []Dataset{
		{
			Name:            "city",
			EntityDimension: "station",
			Fields:          []string{"adultCount", "aonCount"},
			Years:           []int{2023, 2024, 2025},
		},
		{
			Name:            "hotels",
			EntityDimension: "hotel",
			Fields:          append([]string(nil), ledge.Fields...),
			Catalogue: []string{
				"Hotel 1", "Hotel 2", "Hotel 3", "Hotel 4",
				"Hotel 5.1A", "Hotel 5.1B", "Hotel 5.1C",
				"Hotel 5.2A", "Hotel 5.2B", "Hotel 5.2C",
				"Hotel 5.3",
			},
			Years: []int{2023, 2024, 2025},
			Aliases: map[string]string{
				"Hotel 3 (green)": "Hotel 4",
				"Hotel 4 (metal)": "Hotel 4",
			},
			LedgeTally: true,
		},
	}}
}
