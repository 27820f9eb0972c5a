// Package app builds the Dashboard, the explicit context object holding the
// loaded model, the notebook service and their backing stores.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	rediscache "github.com/churn-insight/dashboard/internal/cache/redis"
	"github.com/churn-insight/dashboard/internal/features"
	"github.com/churn-insight/dashboard/internal/inference"
	"github.com/churn-insight/dashboard/internal/metrics"
	"github.com/churn-insight/dashboard/internal/model"
	"github.com/churn-insight/dashboard/internal/notebook"
	"github.com/churn-insight/dashboard/internal/schema"
	"github.com/churn-insight/dashboard/internal/storage/sqlite"
	"github.com/churn-insight/dashboard/internal/web"
	"github.com/churn-insight/dashboard/pkg/circuitbreaker"
	"github.com/churn-insight/dashboard/pkg/config"
	"github.com/churn-insight/dashboard/pkg/logger"
)

// Check is a named readiness probe.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Dashboard is shared by every request. Inference or Notebooks is nil when
// that dashboard is switched off.
type Dashboard struct {
	Schema    *schema.Schema
	Model     *model.Info
	Inference *inference.Service
	Notebooks *notebook.Service
	Renderer  *web.Renderer
	Checks    []Check

	closers []func() error
}

// New loads the model artifact and connects the optional stores. A model that
// cannot be loaded is an error; an unreachable Redis is not.
func New(ctx context.Context, cfg *config.Config) (*Dashboard, error) {
	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, err
	}
	d := &Dashboard{Schema: schema.Attrition, Renderer: renderer}

	if cfg.Features.Inference {
		if err := d.initInference(cfg); err != nil {
			d.Close()
			return nil, err
		}
	}

	if cfg.Features.Notebooks {
		if err := d.initNotebooks(ctx, cfg); err != nil {
			d.Close()
			return nil, err
		}
	}

	return d, nil
}

func (d *Dashboard) initInference(cfg *config.Config) error {
	ensemble, err := model.Load(cfg.Model.Path, d.Schema)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	info := ensemble.Info()
	d.Model = &info

	var history inference.HistoryStore
	if cfg.SQLite.Enabled {
		client, err := sqlite.NewClient(cfg.SQLite.Path)
		if err != nil {
			return fmt.Errorf("failed to open prediction history: %w", err)
		}
		d.closers = append(d.closers, client.Close)

		if err := client.InitSchema(); err != nil {
			return fmt.Errorf("failed to initialize prediction history: %w", err)
		}
		history = client
		d.Checks = append(d.Checks, Check{Name: "sqlite", Probe: client.Ping})
	}

	svc, err := inference.NewService(features.NewAssembler(d.Schema), ensemble, ensemble, inference.Options{History: history})
	if err != nil {
		return err
	}
	d.Inference = svc
	return nil
}

func (d *Dashboard) initNotebooks(ctx context.Context, cfg *config.Config) error {
	entries := make([]notebook.Entry, 0, len(cfg.Notebooks.Entries))
	for _, e := range cfg.Notebooks.Entries {
		entries = append(entries, notebook.Entry{Label: e.Label, Slug: e.Slug, Path: e.File})
	}
	catalog, err := notebook.NewCatalog(cfg.Notebooks.BaseDir, entries)
	if err != nil {
		return err
	}

	var (
		store   notebook.MarkupStore
		breaker *circuitbreaker.Breaker
	)
	if cfg.Redis.Enabled {
		client, err := rediscache.NewClient(ctx, rediscache.Options{
			Host:            cfg.Redis.Host,
			Port:            cfg.Redis.Port,
			Password:        cfg.Redis.Password,
			DB:              cfg.Redis.DB,
			TTL:             time.Duration(cfg.Redis.TTLSeconds) * time.Second,
			ConnectAttempts: cfg.Redis.ConnectAttempts,
		})
		if err != nil {
			logger.Warn("Shared notebook cache unavailable, using in-process cache only", zap.Error(err))
		} else {
			store = client
			d.closers = append(d.closers, client.Close)
			d.Checks = append(d.Checks, Check{Name: "redis", Probe: client.Ping})

			breaker = circuitbreaker.New("redis", circuitbreaker.Config{
				FailureThreshold: cfg.Redis.FailureThreshold,
				OpenTimeout:      time.Duration(cfg.Redis.OpenTimeoutSec) * time.Second,
				OnStateChange: func(name string, _ circuitbreaker.State, to circuitbreaker.State) {
					metrics.CircuitState.WithLabelValues(name).Set(float64(to))
				},
				Logger: logger.Named("circuitbreaker"),
			})
		}
	}

	converter := notebook.NewConverter(cfg.Notebooks.CodeStyle)
	d.Notebooks = notebook.NewService(catalog, converter, notebook.NewCache(store, breaker))
	return nil
}

// Ready runs every readiness probe and returns the failures by name.
func (d *Dashboard) Ready(ctx context.Context) map[string]string {
	failures := make(map[string]string)
	for _, c := range d.Checks {
		if err := c.Probe(ctx); err != nil {
			failures[c.Name] = err.Error()
		}
	}
	return failures
}

// Close releases the stores in reverse order of opening.
func (d *Dashboard) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
