package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MELR22/rissa-plotter/pkg/config"
	"github.com/MELR22/rissa-plotter/pkg/errs"
	"github.com/MELR22/rissa-plotter/pkg/observation"
)

func TestValidateObservation(t *testing.T) {
	datasets := config.DefaultDatasets()
	city, _ := datasets.Lookup("city")
	hotels, _ := datasets.Lookup("hotels")

	ts := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	ok := observation.Observation{Entity: "North", Timestamp: ts, Values: map[string]float64{"adultCount": 3, "aonCount": 0}}
	require.NoError(t, ValidateObservation(city, 0, ok))

	tests := []struct {
		name      string
		mutate    func(o *observation.Observation)
		integrity bool
	}{
		{"missing entity", func(o *observation.Observation) { o.Entity = "" }, true},
		{"missing timestamp", func(o *observation.Observation) { o.Timestamp = time.Time{} }, true},
		{"missing field", func(o *observation.Observation) { delete(o.Values, "aonCount") }, true},
		{"negative value", func(o *observation.Observation) { o.Values["adultCount"] = -1 }, true},
		{"fractional value", func(o *observation.Observation) { o.Values["adultCount"] = 1.5 }, true},
		{"negative group", func(o *observation.Observation) { o.GroupSize = -2 }, true},
		{"entity too long", func(o *observation.Observation) { o.Entity = strings.Repeat("x", MaxEntityLength+1) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := ok.Clone()
			tt.mutate(&o)
			err := ValidateObservation(city, 3, o)
			require.Error(t, err)
			require.Contains(t, err.Error(), "observation 3")
			require.Equal(t, tt.integrity, errs.Is(err, errs.ErrDataIntegrity))
		})
	}

	// ledge datasets do not require numeric fields up front
	ledgeOnly := observation.Observation{Entity: "Hotel 2", Timestamp: ts, Statuses: map[string]string{"a": "Apparently occupied nest"}}
	require.NoError(t, ValidateObservation(hotels, 0, ledgeOnly))
}

func TestValidateObservation_TooManyValues(t *testing.T) {
	city, _ := config.DefaultDatasets().Lookup("city")
	o := observation.Observation{Entity: "North", Timestamp: time.Now(), Values: map[string]float64{}}
	for i := 0; i <= MaxFieldsPerObservation; i++ {
		o.Values[strings.Repeat("f", i+1)] = 1
	}
	require.ErrorIs(t, ValidateObservation(city, 0, o), ErrTooManyFields)
}
