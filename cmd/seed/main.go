package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/MELR22/rissa-plotter/pkg/client"
	"github.com/MELR22/rissa-plotter/pkg/config"
	"github.com/MELR22/rissa-plotter/pkg/logging"
)

// seedConfig selects what to generate
type seedConfig struct {
	Years    []int    `env:"SEED_YEARS" envDefault:"2023,2024,2025"`
	Seed     int64    `env:"SEED_RANDOM" envDefault:"1"`
	Stations []string `env:"SEED_STATIONS" envDefault:"Nyhavna,Bakke bru,Ravnkloa,Skansen"`
	Hotels   bool     `env:"SEED_HOTELS" envDefault:"true"`
}

func main() {
	logging.Setup("info", true)

	var cfg seedConfig
	if err := config.ParseEnv(&cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to read seed configuration")
	}
	clientCfg, err := client.ConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read client configuration")
	}
	if clientCfg.Observer == "" {
		clientCfg.Observer = "seed"
	}

	c, err := client.New(clientCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create client")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := c.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start client")
	}

	var hotels []string
	if cfg.Hotels {
		for _, ds := range config.DefaultDatasets().Datasets {
			if ds.LedgeTally {
				hotels = ds.Catalogue
			}
		}
	}

	for i, year := range cfg.Years {
		s := newSeason(year, cfg.Seed+int64(i), cfg.Stations, hotels)
		city := s.city()
		for _, o := range city {
			if err := c.Record("city", o); err != nil {
				log.Fatal().Err(err).Msg("Failed to queue observation")
			}
		}
		visits := s.hotelVisits()
		for _, o := range visits {
			if err := c.Record("hotels", o); err != nil {
				log.Fatal().Err(err).Msg("Failed to queue observation")
			}
		}
		log.Info().Int("year", year).Int("city", len(city)).Int("hotels", len(visits)).Msg("Generated season")

		if ctx.Err() != nil {
			break
		}
	}

	if err := c.Stop(); err != nil {
		log.Fatal().Err(err).Int64("sent", c.Sent()).Msg("Upload incomplete")
	}
	log.Info().Int64("sent", c.Sent()).Str("endpoint", clientCfg.Endpoint).Msg("Seed complete")
}
