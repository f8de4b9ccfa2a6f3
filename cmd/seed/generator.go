package main

import (
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/ledge"
	"github.com/MELR22/rissa-plotter/pkg/observation"
)

// season generates synthetic counts for one breeding season. Counts rise
// from April, peak around midsummer and fall off in August.
type season struct {
	year     int
	every    time.Duration
	stations []string
	hotels   []string
	ledges   int
	rng      *rand.Rand
}

func newSeason(year int, seed int64, stations, hotels []string) *season {
	return &season{
		year:     year,
		every:    72 * time.Hour,
		stations: stations,
		hotels:   hotels,
		ledges:   24,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (s *season) start() time.Time {
	return time.Date(s.year, time.April, 15, 0, 0, 0, 0, time.UTC)
}

func (s *season) end() time.Time {
	return time.Date(s.year, time.August, 31, 0, 0, 0, 0, time.UTC)
}

// occupancy is 0..1 over the season
func (s *season) occupancy(t time.Time) float64 {
	peak := time.Date(s.year, time.June, 20, 0, 0, 0, 0, time.UTC)
	days := t.Sub(peak).Hours() / 24
	return math.Exp(-(days * days) / (2 * 30 * 30))
}

// jitter spreads visits over the day
func (s *season) jitter(t time.Time) time.Time {
	return t.Add(time.Duration(6+s.rng.Intn(14)) * time.Hour)
}

// city returns one visit per station per step
func (s *season) city() []observation.Observation {
	var out []observation.Observation
	for t := s.start(); !t.After(s.end()); t = t.Add(s.every) {
		occ := s.occupancy(t)
		for i, station := range s.stations {
			if s.rng.Float64() < 0.2 {
				continue // nobody went there that day
			}
			capacity := float64(20 + 15*i)
			adults := math.Round(capacity * occ * (0.8 + 0.4*s.rng.Float64()))
			aon := math.Round(adults * 0.4 * s.rng.Float64())
			out = append(out, observation.Observation{
				Entity:    station,
				Timestamp: s.jitter(t),
				GroupSize: 1 + s.rng.Intn(3),
				Values:    map[string]float64{"adultCount": adults, "aonCount": aon},
			})
		}
	}
	return out
}

// hotelVisits returns ledge statuses per hotel every other step
func (s *season) hotelVisits() []observation.Observation {
	statuses := []string{ledge.StatusOccupied, ledge.StatusOneChick, ledge.StatusTwoChicks, ledge.StatusThreeChicks}

	var out []observation.Observation
	for t := s.start(); !t.After(s.end()); t = t.Add(2 * s.every) {
		occ := s.occupancy(t)
		// chicks hatch from late June
		chicks := t.After(time.Date(s.year, time.June, 25, 0, 0, 0, 0, time.UTC))
		for _, hotel := range s.hotels {
			ledges := make(map[string]string)
			for l := 1; l <= s.ledges; l++ {
				if s.rng.Float64() > occ {
					continue
				}
				status := statuses[0]
				if chicks {
					status = statuses[s.rng.Intn(len(statuses))]
				}
				ledges[strconv.Itoa(l)] = status
			}
			if len(ledges) == 0 {
				continue
			}
			out = append(out, observation.Observation{
				Entity:    hotel,
				Timestamp: s.jitter(t),
				Statuses:  ledges,
			})
		}
	}
	return out
}
