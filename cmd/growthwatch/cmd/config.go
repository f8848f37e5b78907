package cmd

import (
	"context"
	"errors"
	"fmt"
	"growthwatch/internal/chrono"
	"growthwatch/internal/db"
	"growthwatch/internal/notify"
	"growthwatch/internal/snapshot"
	"growthwatch/internal/source"
	"growthwatch/internal/telemetry"
	"growthwatch/internal/watch"
	"growthwatch/lib/configutil"
	"growthwatch/lib/extract"
	"os"
)

type Config struct {
	// Timezone is an IANA timezone used for timestamps and the schedule,
	// defaults to the local timezone.
	Timezone string `json:"timezone"`
	// Schedule is a standard cron spec used by `watch`.
	Schedule string `json:"schedule"`

	Sources []source.HttpOptions `json:"sources"`
	// Files are glob patterns of local files to extract from.
	Files []string `json:"files"`

	Keys  extract.Keys  `json:"keys"`
	Spans extract.Spans `json:"spans"`

	Database     db.Config `json:"database"`
	SnapshotFile string    `json:"snapshot_file"`
	Keep         int       `json:"keep"`

	Email *notify.EmailConfig `json:"email"`
}

func readConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("config file %s not found: %w", path, err)
	}
	return cfg, err
}

func (c Config) engine() extract.Engine {
	return extract.NewEngine(extract.Cascade(c.Keys, c.Spans)...)
}

func (c Config) sources(tel telemetry.API) ([]source.Source, error) {
	var out []source.Source
	for _, opts := range c.Sources {
		src, err := source.NewHttpSource(opts, tel)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", opts.Url, err)
		}
		out = append(out, src)
	}
	if len(c.Files) > 0 {
		src, err := source.NewFileSource(c.Files...)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}
	return out, nil
}

func (c Config) notifier(tel telemetry.API) (notify.Notifier, error) {
	notifiers := notify.Multi{notify.NewLog(tel)}
	if c.Email != nil {
		email, err := notify.NewEmail(*c.Email)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, email)
	}
	return notifiers, nil
}

// app is everything a command needs once the config is loaded.
type app struct {
	cfg   Config
	tel   telemetry.API
	time  chrono.StandardImpl
	store snapshot.Store
	close func() error
}

func openApp(ctx context.Context, cfg Config) (app, error) {
	tel := telemetry.NewSlogAPI()

	clock, err := chrono.NewStandardImpl(cfg.Timezone)
	if err != nil {
		return app{}, fmt.Errorf("load timezone: %w", err)
	}

	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return app{}, fmt.Errorf("open database: %w", err)
	}

	return app{
		cfg:   cfg,
		tel:   tel,
		time:  clock,
		store: snapshot.NewStore(db.New(conn), db.NewMakeTx(conn), clock, tel),
		close: conn.Close,
	}, nil
}

func (a app) watcher() (watch.Watcher, error) {
	sources, err := a.cfg.sources(a.tel)
	if err != nil {
		return watch.Watcher{}, err
	}
	notifier, err := a.cfg.notifier(a.tel)
	if err != nil {
		return watch.Watcher{}, err
	}
	return watch.NewWatcher(watch.Options{
		Sources:      sources,
		Engine:       a.cfg.engine(),
		Store:        a.store,
		Notifier:     notifier,
		SnapshotFile: a.cfg.SnapshotFile,
		Keep:         a.cfg.Keep,
	}, a.time, a.tel), nil
}
