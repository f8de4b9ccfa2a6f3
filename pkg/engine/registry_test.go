package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/config"
	"github.com/MELR22/rissa-plotter/pkg/errs"
	"github.com/MELR22/rissa-plotter/pkg/ledge"
	"github.com/MELR22/rissa-plotter/pkg/observation"
	"github.com/MELR22/rissa-plotter/pkg/storage/memory"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LoadsFromStore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, store.Write(ctx, "hotels", []observation.Observation{
		{
			ID:        "h1",
			Entity:    "Hotel 3 (green)",
			Timestamp: date(2024, time.June, 2),
			Statuses:  map[string]string{"1": ledge.StatusTwoChicks, "2": ledge.StatusOccupied},
		},
		{
			ID:        "h2",
			Entity:    "Hotel 1",
			Timestamp: date(2024, time.June, 9),
			Statuses:  map[string]string{"1": ledge.StatusOneChick},
		},
	}))

	datasets := config.DefaultDatasets()
	reg := NewRegistry(&StoreLoader{Store: store, Datasets: datasets}, datasets.Names())
	require.Equal(t, []string{"city", "hotels"}, reg.Names())

	d, err := reg.Get(ctx, "hotels")
	require.NoError(t, err)
	require.Equal(t, 2, d.Table().Len())

	// alias folded into the canonical hotel
	peaks, err := d.Peaks("Hotel 4", 6)
	require.NoError(t, err)
	require.Len(t, peaks, 1)
	require.Equal(t, ledge.Counts{Nests: 2, TwoChicks: 1}, peaks[0].Counts)

	again, err := reg.Get(ctx, "hotels")
	require.NoError(t, err)
	require.Same(t, d, again)

	require.NoError(t, store.Write(ctx, "hotels", []observation.Observation{
		{ID: "h3", Entity: "Hotel 2", Timestamp: date(2024, time.June, 10)},
	}))
	reg.Invalidate("hotels")

	reloaded, err := reg.Get(ctx, "hotels")
	require.NoError(t, err)
	require.NotSame(t, d, reloaded)
	require.Equal(t, 3, reloaded.Table().Len())
	require.Contains(t, reg.Loaded(), "hotels")
}

func TestRegistry_UnknownDataset(t *testing.T) {
	reg := NewRegistry(LoaderFunc(func(ctx context.Context, name string) (*observation.Table, error) {
		t.Fatalf("loader called for %s", name)
		return nil, nil
	}), []string{"city"})

	_, err := reg.Get(context.Background(), "birds")
	require.True(t, errs.Is(err, errs.ErrInvalidParameter))
}

func TestRegistry_FailedRefreshKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	table, err := observation.NewTable(observation.Schema{Name: "city", EntityDimension: "station", Fields: []string{"n"}}, nil)
	require.NoError(t, err)

	fail := false
	reg := NewRegistry(LoaderFunc(func(ctx context.Context, name string) (*observation.Table, error) {
		if fail {
			return nil, errors.New("upstream down")
		}
		return table, nil
	}), []string{"city"})

	first, err := reg.Get(ctx, "city")
	require.NoError(t, err)

	fail = true
	require.Error(t, reg.RefreshAll(ctx))

	still, err := reg.Get(ctx, "city")
	require.NoError(t, err)
	require.Same(t, first, still)
}

func TestRegistry_InvalidateDuringLoad(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	row := func(id string, day int) observation.Observation {
		return observation.Observation{
			ID: id, Entity: "X", Timestamp: date(2024, time.May, day),
			Values: map[string]float64{"adultCount": 1, "aonCount": 0},
		}
	}
	require.NoError(t, store.Write(ctx, "city", []observation.Observation{row("a", 1)}))

	datasets := config.DefaultDatasets()
	inner := &StoreLoader{Store: store, Datasets: datasets}

	started := make(chan struct{})
	release := make(chan struct{})
	var once bool
	reg := NewRegistry(LoaderFunc(func(ctx context.Context, name string) (*observation.Table, error) {
		table, err := inner.Load(ctx, name)
		if !once {
			once = true
			close(started)
			<-release
		}
		return table, err
	}), datasets.Names())

	done := make(chan *Dataset)
	errc := make(chan error, 1)
	go func() {
		d, err := reg.Get(ctx, "city")
		errc <- err
		done <- d
	}()

	// a write lands while the first load is still in flight
	<-started
	require.NoError(t, store.Write(ctx, "city", []observation.Observation{row("b", 2)}))
	reg.Invalidate("city")
	close(release)

	require.NoError(t, <-errc)
	old := <-done
	require.Equal(t, 1, old.Table().Len())

	d, err := reg.Get(ctx, "city")
	require.NoError(t, err)
	require.Equal(t, 2, d.Table().Len())
}
