// Package daemon wires the light node together: GPIO, effect engine, tone
// emitter, NATS receive loop, watchdog, HTTP API and config reload, all run
// under one errgroup so any fatal error takes the process down.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/lightnode/internal/api"
	"github.com/smazurov/lightnode/internal/api/models"
	"github.com/smazurov/lightnode/internal/buzzer"
	"github.com/smazurov/lightnode/internal/command"
	"github.com/smazurov/lightnode/internal/config"
	"github.com/smazurov/lightnode/internal/events"
	"github.com/smazurov/lightnode/internal/gpio"
	"github.com/smazurov/lightnode/internal/led"
	"github.com/smazurov/lightnode/internal/logging"
	"github.com/smazurov/lightnode/internal/metrics"
	"github.com/smazurov/lightnode/internal/nats"
	"github.com/smazurov/lightnode/internal/systemd"
)

// Config is the resolved daemon configuration.
type Config struct {
	NATSURL      string
	NATSEmbedded bool
	NATSHost     string
	NATSPort     int
	Subjects     nats.Subjects
	// EventsPrefix mirrors bus events onto NATS when non-empty.
	EventsPrefix string

	GPIODriver   string
	GPIOChip     string
	Pins         gpio.Pins
	CommonAnode  bool
	PWMFrequency int
	// Driver overrides GPIODriver when set.
	Driver gpio.Driver

	WatchdogInterval time.Duration

	APIEnabled bool
	APIAddr    string

	// ConfigPath enables logging hot reload when non-empty.
	ConfigPath string
}

// Daemon runs the node until its context ends or a component fails.
type Daemon struct {
	cfg    Config
	logger *slog.Logger
	ready  chan struct{}
	fatal  chan error
}

// New creates a daemon for cfg.
func New(cfg Config, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = logging.GetLogger("daemon")
	}
	if cfg.Subjects == (nats.Subjects{}) {
		cfg.Subjects = nats.DefaultSubjects()
	}
	return &Daemon{
		cfg:    cfg,
		logger: logger,
		ready:  make(chan struct{}),
		fatal:  make(chan error, 1),
	}
}

// Ready is closed once the pins are claimed and NATS is connected.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// fail records the first hardware error; later ones are logged only.
func (d *Daemon) fail(err error) {
	select {
	case d.fatal <- err:
	default:
		d.logger.Error("Additional hardware failure", "error", err)
	}
}

// Run claims the hardware and serves commands. It returns nil on a clean
// shutdown and the first fatal error otherwise.
func (d *Daemon) Run(ctx context.Context) error {
	driver, driverName, err := d.openDriver()
	if err != nil {
		return err
	}

	adapter, err := gpio.NewAdapter(driver, d.cfg.Pins, d.cfg.CommonAnode)
	if err != nil {
		driver.Close()
		return fmt.Errorf("claim GPIO pins: %w", err)
	}
	d.logger.Info("GPIO pins claimed",
		"driver", driverName,
		"pins", d.cfg.Pins,
		"common_anode", d.cfg.CommonAnode,
		"tone", adapter.CanTone())

	bus := events.New()
	defer metrics.Register(bus)()

	engine := led.New(adapter, bus, logging.GetLogger("engine"), d.fail)
	emitter := buzzer.New(adapter, bus, logging.GetLogger("buzzer"), d.fail)
	dispatcher := command.NewDispatcher(engine, emitter, d.cfg.Subjects, bus, logging.GetLogger("command"))

	defer func() {
		engine.Close()
		emitter.Close()
		if err := adapter.Close(); err != nil {
			d.logger.Warn("Failed to release GPIO", "error", err)
		}
		d.logger.Info("GPIO released")
	}()

	url := d.cfg.NATSURL
	if d.cfg.NATSEmbedded {
		broker := nats.NewServer(nats.ServerOptions{
			Host:   d.cfg.NATSHost,
			Port:   d.cfg.NATSPort,
			Logger: logging.GetLogger("nats"),
		})
		if err := broker.Start(); err != nil {
			return fmt.Errorf("start embedded NATS: %w", err)
		}
		defer broker.Stop()
		url = broker.ClientURL()
	}

	notifier := systemd.NewNotifier(d.cfg.WatchdogInterval, logging.GetLogger("systemd"))
	defer func() {
		if err := notifier.Stopping(); err != nil {
			d.logger.Debug("STOPPING notification failed", "error", err)
		}
	}()

	sub := nats.NewSubscriber(url, d.cfg.Subjects.List(), bus, logging.GetLogger("nats"))
	sub.OnConnect(func() {
		if err := notifier.Ready(); err != nil {
			d.logger.Warn("READY notification failed", "error", err)
		}
		if err := notifier.Status("Listening on %s, %s", d.cfg.Subjects.Light, d.cfg.Subjects.Buzzer); err != nil {
			d.logger.Debug("STATUS notification failed", "error", err)
		}
		close(d.ready)
	})
	if err := sub.Connect(); err != nil {
		return err
	}
	defer sub.Close()

	publisher := nats.NewPublisherConn(sub.Conn(), d.cfg.Subjects, logging.GetLogger("nats"))
	if d.cfg.EventsPrefix != "" {
		bridge := nats.NewBridge(publisher, d.cfg.EventsPrefix, bus, logging.GetLogger("nats"))
		bridge.Start()
		defer bridge.Stop()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case err := <-d.fatal:
			return err
		case <-gctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		return sub.Run(gctx, dispatcher.Handle)
	})

	g.Go(func() error {
		return notifier.Run(gctx)
	})

	if d.cfg.APIEnabled {
		if err := d.serveAPI(gctx, g, api.Options{
			Publisher: publisher,
			EventBus:  bus,
			Capabilities: models.Capabilities{
				Driver:      driverName,
				Pins:        adapter.Pins(),
				CommonAnode: adapter.ActiveLow(),
				Tone:        adapter.CanTone(),
			},
			Connected:      sub.IsConnected,
			MetricsHandler: metrics.Handler(),
		}); err != nil {
			return err
		}
	}

	if d.cfg.ConfigPath != "" {
		watcher := config.NewConfigWatcher(d.cfg.ConfigPath, config.LoadLoggingConfig, logging.GetLogger("config"))
		watcher.OnReload(func(c logging.Config) {
			logging.Initialize(c)
			d.logger.Info("Logging levels reloaded", "level", c.Level)
		})
		if err := watcher.Start(); err != nil {
			d.logger.Warn("Config hot reload disabled", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	d.logger.Info("Light node running", "nats", url)
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Error("Shutting down after failure", "error", err)
		return err
	}
	d.logger.Info("Shutting down")
	return nil
}

func (d *Daemon) openDriver() (gpio.Driver, string, error) {
	if d.cfg.Driver != nil {
		return d.cfg.Driver, "custom", nil
	}
	driver, name, err := gpio.New(d.cfg.GPIODriver, d.cfg.GPIOChip, d.cfg.PWMFrequency, logging.GetLogger("gpio"))
	if err != nil {
		return nil, "", fmt.Errorf("open GPIO driver: %w", err)
	}
	return driver, name, nil
}

func (d *Daemon) serveAPI(ctx context.Context, g *errgroup.Group, opts api.Options) error {
	if manager, err := systemd.NewManager(ctx, false); err != nil {
		d.logger.Debug("systemd D-Bus unavailable, service status disabled", "error", err)
	} else {
		opts.Service = manager
		go func() {
			<-ctx.Done()
			manager.Close()
		}()
	}

	server := api.NewServer(&opts)
	listener, err := net.Listen("tcp", d.cfg.APIAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", d.cfg.APIAddr, err)
	}

	g.Go(func() error {
		return server.Serve(listener)
	})
	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})
	return nil
}
