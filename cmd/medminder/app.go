package main

import (
	"context"
	"fmt"
	"time"

	_ "github.com/nerrad567/medminder/migrations"

	"github.com/nerrad567/medminder/internal/api"
	"github.com/nerrad567/medminder/internal/history"
	"github.com/nerrad567/medminder/internal/infrastructure/config"
	"github.com/nerrad567/medminder/internal/infrastructure/database"
	"github.com/nerrad567/medminder/internal/infrastructure/influxdb"
	"github.com/nerrad567/medminder/internal/infrastructure/logging"
	"github.com/nerrad567/medminder/internal/infrastructure/mqtt"
	"github.com/nerrad567/medminder/internal/infrastructure/redis"
	"github.com/nerrad567/medminder/internal/medication"
	"github.com/nerrad567/medminder/internal/sink"
)

// app holds the long-lived components of a running service. Optional
// backends stay nil when disabled in config.
type app struct {
	cfg *config.Config
	log *logging.Logger
	loc *time.Location

	db      *database.DB
	history *history.SQLiteRepository
	mqtt    *mqtt.Client
	influx  *influxdb.Client
	redis   *redis.Client
	hub     *api.Hub

	closers []func() error
}

// run starts every component and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	a := &app{cfg: cfg, log: log, loc: loc, hub: api.NewHub(cfg.WebSocket, log)}
	defer a.close()

	if err := a.openDatabase(ctx); err != nil {
		return err
	}
	if err := a.connectMQTT(); err != nil {
		return err
	}
	if err := a.connectInflux(); err != nil {
		return err
	}
	if err := a.connectRedis(ctx); err != nil {
		return err
	}

	notifier, publisher := a.sinks()
	opts := medication.ManagerOptions{
		Notifier:  notifier,
		Publisher: publisher,
		Logger:    log,
		Location:  loc,
	}
	if a.history != nil {
		opts.Store = a.history
	}
	managers := buildManagers(ctx, cfg.Entries, opts, log)
	if len(managers) == 0 {
		log.Warn("no entries configured; nothing to track")
	}

	learner := medication.NewTagLearner()
	learner.SetDefaultTimeout(cfg.Scheduler.LearnTimeout)
	svc := medication.NewService(managers, medication.ServiceOptions{
		QueueSize: cfg.Scheduler.QueueSize,
		Learner:   learner,
		Logger:    log,
	})
	svc.Start(ctx)
	a.onClose(func() error {
		svc.Close()
		return nil
	})

	if a.mqtt != nil {
		if err := subscribeServices(ctx, a.mqtt, svc, byte(cfg.MQTT.QoS), log); err != nil {
			return fmt.Errorf("subscribing to service topics: %w", err)
		}
		log.Info("MQTT service topics subscribed", "topics", a.mqtt.Subscribed())
	}

	sched := medication.NewScheduler(cfg.Scheduler, a.sweepers(svc)...)
	sched.SetLogger(log)
	sched.SetLocation(loc)
	sched.Start(ctx)
	a.onClose(func() error {
		sched.Stop()
		return nil
	})

	if cfg.API.Enabled {
		srv, err := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log,
			Service:  svc,
			History:  a.doseLister(),
			Hub:      a.hub,
			Checks:   a.checks(),
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return err
		}
		a.onClose(srv.Close)
	}

	if err := checkHealth(ctx, a.checks()); err != nil {
		log.Warn("startup health check failed", "error", err)
	} else {
		log.Info("all components healthy")
	}

	log.Info("medminder started",
		"entries", len(managers),
		"database", a.db != nil,
		"mqtt", a.mqtt != nil,
		"influxdb", a.influx != nil,
		"redis", a.redis != nil,
		"api", cfg.API.Enabled,
	)

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// close releases components in reverse start order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Error("error during shutdown", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) openDatabase(ctx context.Context) error {
	if !a.cfg.Database.Enabled {
		a.log.Warn("database disabled: state and dose history will not survive a restart")
		return nil
	}

	db, err := openDatabase(ctx, a.cfg.Database)
	if err != nil {
		return err
	}
	a.db = db
	a.history = history.NewSQLiteRepository(db.DB)
	a.onClose(db.Close)
	a.log.Info("database ready", "path", db.Path())
	return nil
}

// openDatabase opens the SQLite file and applies pending migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

func (a *app) connectMQTT() error {
	if !a.cfg.MQTT.Enabled {
		a.log.Info("MQTT disabled: notifications go to the log")
		return nil
	}

	client, err := mqtt.Connect(a.cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(a.log)
	client.SetOnConnect(func() {
		a.log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		a.log.Warn("MQTT disconnected", "error", err)
	})
	a.mqtt = client
	a.onClose(client.Close)
	a.log.Info("MQTT connected", "broker", fmt.Sprintf("%s:%d", a.cfg.MQTT.Broker.Host, a.cfg.MQTT.Broker.Port))
	return nil
}

func (a *app) connectInflux() error {
	if !a.cfg.InfluxDB.Enabled {
		return nil
	}

	client, err := influxdb.Connect(a.cfg.InfluxDB)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		a.log.Error("InfluxDB write error", "error", err)
	})
	a.influx = client
	a.onClose(client.Close)
	a.log.Info("InfluxDB connected", "url", a.cfg.InfluxDB.URL, "bucket", a.cfg.InfluxDB.Bucket)
	return nil
}

func (a *app) connectRedis(ctx context.Context) error {
	if !a.cfg.Redis.Enabled {
		return nil
	}

	client, err := redis.Connect(ctx, a.cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to Redis: %w", err)
	}
	a.redis = client
	a.onClose(client.Close)
	a.log.Info("Redis connected", "addr", a.cfg.Redis.Addr)
	return nil
}

// sinks assembles the notification and event fan-outs from the enabled backends.
func (a *app) sinks() (medication.Notifier, medication.Publisher) {
	notifiers := sink.NotifyFanout{a.hub}
	publishers := sink.Fanout{a.hub}

	if a.mqtt != nil {
		notifiers = append(notifiers, sink.NewMQTTNotifier(a.mqtt))
		publishers = append(publishers, sink.NewMQTTPublisher(a.mqtt))
	} else {
		notifiers = append(notifiers, sink.LogNotifier{Logger: a.log})
	}
	if a.influx != nil {
		rec := sink.NewInfluxRecorder(a.influx)
		notifiers = append(notifiers, rec)
		publishers = append(publishers, rec)
	}
	if a.redis != nil {
		publishers = append(publishers, sink.NewRedisMirror(a.redis))
	}
	return notifiers, publishers
}

func (a *app) sweepers(svc *medication.Service) []medication.Sweeper {
	sweepers := svc.Sweepers()
	if a.history != nil && a.cfg.Database.HistoryRetentionDays > 0 {
		sweepers = append(sweepers, historyPruner{
			repo:      a.history,
			retention: time.Duration(a.cfg.Database.HistoryRetentionDays) * 24 * time.Hour,
			log:       a.log,
		})
	}
	return sweepers
}

func (a *app) doseLister() api.DoseLister {
	if a.history == nil {
		return nil
	}
	return a.history
}

// checks lists the health probes of the enabled backends.
func (a *app) checks() map[string]api.HealthFunc {
	checks := make(map[string]api.HealthFunc)
	if a.db != nil {
		checks["database"] = a.db.HealthCheck
	}
	if a.mqtt != nil {
		checks["mqtt"] = a.mqtt.HealthCheck
	}
	if a.influx != nil {
		checks["influxdb"] = a.influx.HealthCheck
	}
	if a.redis != nil {
		checks["redis"] = a.redis.HealthCheck
	}
	return checks
}

// buildManagers creates one Manager per entry. Malformed records are skipped
// by the registry; a failed restore leaves the configured values in place.
func buildManagers(ctx context.Context, entries []config.EntryConfig, opts medication.ManagerOptions, log *logging.Logger) []*medication.Manager {
	managers := make([]*medication.Manager, 0, len(entries))
	for _, entry := range entries {
		reg, errs := medication.Build(entry, log)
		if len(errs) > 0 {
			log.Warn("entry loaded with skipped records", "entry_id", entry.ID, "skipped", len(errs))
		}

		m := medication.NewManager(reg, opts)
		if err := m.Restore(ctx); err != nil {
			log.Warn("restoring state failed; using configured values", "entry_id", entry.ID, "error", err)
		}
		managers = append(managers, m)
	}
	return managers
}
