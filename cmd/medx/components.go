package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"medical-record-exchange/internal/adapters"
	"medical-record-exchange/internal/config"
	"medical-record-exchange/internal/logging"
	"medical-record-exchange/internal/reader"
	"medical-record-exchange/internal/reconcile"
	"medical-record-exchange/internal/scan"
	"medical-record-exchange/internal/services"
	"medical-record-exchange/internal/store"
)

// components holds the components shared by every subcommand.
type components struct {
	cfg      config.Config
	logger   zerolog.Logger
	store    *store.RecordStore
	queue    *adapters.InMemoryQueueAdapter
	records  services.RecordServiceContract
	exchange services.ExchangeServiceContract
}

func newComponents(ctx context.Context, configPath, envFile string) (*components, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	rs, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}

	primary, err := reader.New(cfg.Scan, logger)
	if err != nil {
		_ = rs.Close()
		return nil, err
	}
	fallback := reader.NewSimulatedReader(primary.Channel(), cfg.Scan.FallbackDelay, cfg.Scan.FallbackSuccessRate, logger)

	queue := adapters.NewInMemoryQueueAdapter(logger)
	exchange := services.NewExchangeService(
		rs,
		reconcile.New(rs, logger),
		primary,
		fallback,
		reader.NewQRRenderer(),
		queue,
		services.ExchangeConfig{
			Timings: scan.Timings{
				SuccessDisplay: cfg.Scan.SuccessDisplay,
				ErrorDisplay:   cfg.Scan.ErrorDisplay,
			},
			FHIRVersion: cfg.FHIR.Version,
		},
		logger,
	)
	if err := exchange.Start(ctx); err != nil {
		_ = queue.Close()
		_ = rs.Close()
		return nil, err
	}

	log := logging.Component(logger, "main")
	log.Debug().
		Str("store", cfg.Store.Driver).
		Str("channel", string(primary.Channel())).
		Msg("components ready")

	return &components{
		cfg:      cfg,
		logger:   logger,
		store:    rs,
		queue:    queue,
		records:  services.NewRecordService(rs, logger),
		exchange: exchange,
	}, nil
}

func (r *components) Close(ctx context.Context) error {
	return errors.Join(
		r.exchange.Stop(ctx),
		r.queue.Close(),
		r.store.Close(),
	)
}
