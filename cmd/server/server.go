package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"skoll/internal/config"
	"skoll/internal/engine"
	"skoll/internal/journal"
	"skoll/internal/market"
	skollnet "skoll/internal/net"
	"skoll/internal/utils"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the venue configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("unable to load configuration")
	}
	applyLogLevel(cfg.Logging.Level)

	clock := utils.RealClock{}

	registry, err := buildRegistry(cfg, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to build instrument registry")
	}

	eng := engine.New(registry)
	for _, sym := range registry.Symbols() {
		if _, err := eng.RegisterBook(sym); err != nil {
			log.Fatal().Err(err).Str("instrument", string(sym)).Msg("unable to open book")
		}
	}

	placer := engine.NewPlacer(eng, clock)

	if cfg.Journal.Dir != "" {
		jnl, err := journal.Open(cfg.Journal.Dir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.Journal.Dir).Msg("unable to open journal")
		}
		defer func() {
			if err := jnl.Close(); err != nil {
				log.Error().Err(err).Msg("closing journal")
			}
		}()

		// Rebuild book state by replaying the journaled submission sequence,
		// then start journaling new submissions past it.
		replayed := 0
		err = jnl.Replay(registry, func(seq uint64, o *engine.Order) error {
			placer.Restore(seq, o)
			replayed++
			return nil
		})
		if err != nil {
			log.Fatal().Err(err).Msg("journal replay failed")
		}
		log.Info().Int("submissions", replayed).Msg("journal replayed")
		placer.SetJournal(jnl)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	srv := skollnet.NewServer(cfg.Server.Address, cfg.Server.Port, cfg.Server.Workers, eng, placer, clock)
	go srv.Run(ctx)

	<-ctx.Done()
}

func buildRegistry(cfg *config.Config, clock utils.Clock) (*market.Registry, error) {
	registry := market.NewRegistry()
	for _, ic := range cfg.Instruments {
		inst, err := ic.Instrument()
		if err != nil {
			return nil, err
		}
		if err := registry.Register(inst); err != nil {
			return nil, err
		}
		if ic.ReferencePrice != "" {
			price, err := market.PriceFromString(inst.Currency, ic.ReferencePrice)
			if err != nil {
				return nil, err
			}
			mark := market.NewReferencePrice(time.Time{}, price, clock.Now())
			if err := registry.SetReferencePrice(inst.Symbol, mark); err != nil {
				return nil, err
			}
		}
	}
	return registry, nil
}

func applyLogLevel(level string) {
	if level == "" {
		return
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("unknown log level, keeping default")
		return
	}
	zerolog.SetGlobalLevel(parsed)
}
