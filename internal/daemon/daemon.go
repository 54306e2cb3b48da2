package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/batfi/batfi/internal/api"
	"github.com/batfi/batfi/internal/domain"
	"github.com/batfi/batfi/internal/estimator"
	"github.com/batfi/batfi/internal/health"
	"github.com/batfi/batfi/internal/infra/metrics"
	"github.com/batfi/batfi/internal/infra/mqtt"
	"github.com/batfi/batfi/internal/infra/resource"
	"github.com/batfi/batfi/internal/infra/sqlite"
	"github.com/batfi/batfi/internal/infra/sysfs"
	"github.com/batfi/batfi/internal/infra/thermal"
)

// pruneEvery is how often old snapshots are pruned while polling.
const pruneEvery = time.Hour

// Daemon owns one battery sampler and fans its snapshots out to the
// store, metrics, MQTT and the live stream.
type Daemon struct {
	Config    Config
	Source    *sysfs.Source
	Catalog   *thermal.Catalog
	Sampler   *resource.Sampler
	DB        *sqlite.DB
	MQTT      *mqtt.Client
	Publisher *mqtt.Publisher
	Server    *api.Server
	Health    *health.Checker

	sessionID string
	version   string
	debug     *log.Logger
	now       func() time.Time
	lastPrune time.Time
	cancel    context.CancelFunc

	mu      sync.RWMutex
	latest  *domain.BatteryInfo
	sensors domain.SensorReport
}

// Option configures New.
type Option func(*Daemon)

// WithSource overrides the sysfs source built from Battery.SysfsRoot.
func WithSource(src *sysfs.Source) Option {
	return func(d *Daemon) { d.Source = src }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Daemon) { d.now = now }
}

// WithVersion sets the version reported by the API.
func WithVersion(v string) Option {
	return func(d *Daemon) { d.version = v }
}

// WithDebugLog routes discovery and per-poll logs to l.
func WithDebugLog(l *log.Logger) Option {
	return func(d *Daemon) { d.debug = l }
}

// New resolves the battery and wires every enabled component. Store and
// broker failures disable that sink and are logged; only a missing battery
// is fatal.
func New(cfg Config, opts ...Option) (*Daemon, error) {
	d := &Daemon{
		Config:  cfg,
		version: "dev",
		debug:   log.New(io.Discard, "", 0),
		now:     time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	if d.Source == nil {
		d.Source = sysfs.New(cfg.Battery.SysfsRoot)
	}

	name, err := ResolveBattery(d.Source, cfg.Battery.Name)
	if err != nil {
		return nil, err
	}
	d.debug.Printf("[daemon] battery %s under %s", name, d.Source.Root())

	d.Catalog = thermal.Discover(d.Source, thermal.WithLogger(d.debug), thermal.WithClock(d.now))
	d.Sampler = resource.NewSampler(d.Source, name, d.Catalog, estimator.New(cfg.Estimator), resource.WithClock(d.now))
	d.sensors = d.Catalog.Report()

	if cfg.Store.Enabled {
		d.openStore(name)
	}
	if cfg.MQTT.Enabled {
		d.connectMQTT()
	}

	d.Server = api.NewServer(d, d.version)
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}

	d.Health = health.NewChecker(health.BatteryCheck(name, d.Sampler.Present))
	if d.DB != nil {
		d.Server.SetHistory(d.DB)
		d.Health.Add(health.StoreCheck(d.DB))
	}
	if d.MQTT != nil {
		d.Health.Add(health.BrokerCheck(cfg.MQTT.Broker, d.MQTT.IsConnected))
	}
	d.Server.SetHealth(d.Health)

	return d, nil
}

func (d *Daemon) openStore(battery string) {
	db, err := sqlite.Open(d.Config.Store.Dir)
	if err != nil {
		log.Printf("[store] disabled: %v", err)
		return
	}
	id, err := db.StartSession(battery)
	if err != nil {
		log.Printf("[store] disabled: %v", err)
		db.Close()
		return
	}
	d.DB = db
	d.sessionID = id
	d.debug.Printf("[store] session %s in %s", id, d.Config.Store.Dir)
}

func (d *Daemon) connectMQTT() {
	c := d.Config.MQTT
	clientID := c.ClientID
	if clientID == "" {
		host, _ := os.Hostname()
		clientID = "batfi-" + host
	}
	client, err := mqtt.NewClient(mqtt.ClientConfig{
		Broker:   c.Broker,
		ClientID: clientID,
		Username: c.Username,
		Password: c.Password,
	})
	if err != nil {
		log.Printf("[mqtt] disabled: %v", err)
		return
	}
	d.MQTT = client
	d.Publisher = mqtt.NewPublisher(client, mqtt.PublisherConfig{
		Topic:    c.Topic,
		QoS:      byte(c.QoS),
		Retained: c.Retained,
	})
}

// ResolveBattery picks the battery to monitor. An explicit name must exist;
// otherwise the first battery in name order is used.
func ResolveBattery(src *sysfs.Source, want string) (string, error) {
	batteries, err := src.Batteries()
	if err != nil {
		return "", fmt.Errorf("list batteries: %w", err)
	}

	if want != "" {
		if src.Exists(sysfs.SupplyDir(want)) {
			return want, nil
		}
		names := make([]string, len(batteries))
		for i, b := range batteries {
			names[i] = b.Name
		}
		available := strings.Join(names, ", ")
		if available == "" {
			available = "none"
		}
		return "", fmt.Errorf("%s (available: %s): %w", want, available, domain.ErrBatteryNotFound)
	}

	if len(batteries) == 0 {
		return "", domain.ErrNoBatteries
	}
	return batteries[0].Name, nil
}

// ─── Snapshot State ─────────────────────────────────────────────────────────

// BatteryName returns the monitored battery.
func (d *Daemon) BatteryName() string { return d.Sampler.Name() }

// SessionID returns the store session, empty when the store is off.
func (d *Daemon) SessionID() string { return d.sessionID }

// Latest returns the most recent snapshot.
func (d *Daemon) Latest() (*domain.BatteryInfo, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.latest == nil {
		return nil, false
	}
	cp := *d.latest
	return &cp, true
}

// Sensors returns the catalog as of the last poll.
func (d *Daemon) Sensors() domain.SensorReport {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sensors
}

// PowerHistory returns the estimator's power samples, oldest first. Call
// from the polling goroutine only.
func (d *Daemon) PowerHistory() []domain.PowerSample {
	return d.Sampler.Estimator().Samples()
}

// ─── Polling ────────────────────────────────────────────────────────────────

// Poll runs one sampling cycle and delivers the snapshot to every sink.
// Sink failures are logged and counted, never returned.
func (d *Daemon) Poll() (*domain.BatteryInfo, error) {
	info, err := d.Sampler.Poll()
	if err != nil {
		metrics.PollFailed(d.Sampler.Name())
		return nil, err
	}
	info.SessionID = d.sessionID

	metrics.Observe(info)
	d.deliver(info)

	d.mu.Lock()
	cp := *info
	d.latest = &cp
	d.sensors = d.Catalog.Report()
	d.mu.Unlock()

	return info, nil
}

func (d *Daemon) deliver(info *domain.BatteryInfo) {
	if d.DB != nil {
		if _, err := d.DB.InsertSnapshot(info); err != nil {
			metrics.SinkErrors.WithLabelValues("store").Inc()
			log.Printf("[store] %v", err)
		}
		d.maybePrune()
	}
	if d.Publisher != nil && !d.Publisher.Enqueue(info) {
		metrics.SinkErrors.WithLabelValues("mqtt").Inc()
		d.debug.Printf("[mqtt] queue full, snapshot dropped")
	}
	if err := d.Server.Hub().Broadcast(info); err != nil {
		metrics.SinkErrors.WithLabelValues("stream").Inc()
		log.Printf("[api] broadcast: %v", err)
	}
}

func (d *Daemon) maybePrune() {
	keep := d.Config.RetentionPeriod()
	now := d.now()
	if keep <= 0 || now.Sub(d.lastPrune) < pruneEvery {
		return
	}
	d.lastPrune = now
	n, err := d.DB.Prune(now.Add(-keep))
	if err != nil {
		log.Printf("[store] %v", err)
		return
	}
	if n > 0 {
		d.debug.Printf("[store] pruned %d snapshots", n)
	}
}

// RunOptions controls the poll loop.
type RunOptions struct {
	Once        bool
	Interval    time.Duration
	Duration    time.Duration // 0 = until ctx is cancelled
	StopOnError bool
}

// Run polls until ctx is cancelled, the duration elapses, or after one
// cycle when Once is set. handle sees every result. With StopOnError the
// first failed poll ends the loop and is returned.
func (d *Daemon) Run(ctx context.Context, opts RunOptions, handle func(*domain.BatteryInfo, error)) error {
	if opts.Interval <= 0 {
		opts.Interval = d.Config.PollInterval()
	}
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}
	if d.Publisher != nil {
		pubCtx, stopPublisher := context.WithCancel(ctx)
		published := make(chan struct{})
		go func() {
			d.Publisher.Start(pubCtx)
			close(published)
		}()
		// Queued snapshots are flushed before Run returns.
		defer func() {
			stopPublisher()
			<-published
		}()
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		info, err := d.Poll()
		if handle != nil {
			handle(info, err)
		}
		if err != nil {
			if opts.StopOnError {
				return err
			}
			log.Printf("[daemon] poll: %v", err)
		}
		if opts.Once {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ─── Serving ────────────────────────────────────────────────────────────────

// Serve starts the HTTP server, health checks and poll loop, and blocks
// until a signal or ctx cancellation.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)
	polling := make(chan struct{})
	go func() {
		defer close(polling)
		err := d.Run(ctx, RunOptions{Interval: d.Config.PollInterval()}, nil)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[daemon] poll loop: %v", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     d.Server.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		cancel()
		d.Server.Hub().Close()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	fmt.Printf("batfi serving %s on http://%s\n", d.BatteryName(), addr)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}
	if d.Publisher != nil {
		fmt.Printf("  MQTT:    %s (%s)\n", d.Config.MQTT.Broker, mqtt.Topic(d.Config.MQTT.Topic, d.BatteryName()))
	}

	err := httpServer.ListenAndServe()
	cancel()
	<-polling
	if !api.IsClosed(err) {
		return err
	}
	return nil
}

// Close ends the session and shuts down every resource.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.MQTT != nil {
		d.MQTT.Close()
	}
	if d.DB != nil {
		if d.sessionID != "" {
			if err := d.DB.EndSession(d.sessionID); err != nil {
				log.Printf("[store] end session: %v", err)
			}
		}
		_ = d.DB.Close()
	}
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
