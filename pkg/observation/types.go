package observation

import (
	"time"
)

// Observation represents a single raw field submission
type Observation struct {
	ID        string             `json:"id,omitempty"`
	Entity    string             `json:"entity"`
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values,omitempty"`

	// Statuses holds categorical sub-states (e.g. per-ledge nest status).
	// Only pre-processors read it; the temporal engine never does.
	Statuses map[string]string `json:"statuses,omitempty"`

	Observer  string `json:"observer,omitempty"`
	GroupSize int    `json:"group_size,omitempty"`
}

// Clone returns a deep copy of the observation
func (o Observation) Clone() Observation {
	c := o
	if o.Values != nil {
		c.Values = make(map[string]float64, len(o.Values))
		for k, v := range o.Values {
			c.Values[k] = v
		}
	}
	if o.Statuses != nil {
		c.Statuses = make(map[string]string, len(o.Statuses))
		for k, v := range o.Statuses {
			c.Statuses[k] = v
		}
	}
	return c
}

// Schema describes one dataset variant: which column identifies the entity
// and which numeric fields are aggregated.
type Schema struct {
	Name            string   `json:"name" yaml:"name"`
	EntityDimension string   `json:"entity_dimension" yaml:"entity_dimension"`
	Fields          []string `json:"fields" yaml:"fields"`

	// Catalogue lists entities known to exist even if never observed.
	Catalogue []string `json:"catalogue,omitempty" yaml:"catalogue,omitempty"`

	// Years lists monitored seasons even if never observed.
	Years []int `json:"years,omitempty" yaml:"years,omitempty"`
}

// HasField reports whether field is one of the schema's numeric fields
func (s Schema) HasField(field string) bool {
	for _, f := range s.Fields {
		if f == field {
			return true
		}
	}
	return false
}
