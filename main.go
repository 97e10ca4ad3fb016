package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/lightnode/cmd"
	"github.com/smazurov/lightnode/internal/config"
	"github.com/smazurov/lightnode/internal/daemon"
	"github.com/smazurov/lightnode/internal/gpio"
	"github.com/smazurov/lightnode/internal/logging"
	"github.com/smazurov/lightnode/internal/nats"
	"github.com/smazurov/lightnode/internal/systemd"
	"github.com/smazurov/lightnode/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `name:"config" help:"Path to configuration file" short:"c" default:"config.toml"`

	// NATS settings
	NATSURL           string `name:"nats-url" help:"NATS server URL" default:"nats://127.0.0.1:4222" toml:"nats.url" env:"NATS_URL"`
	NATSEmbedded      bool   `name:"nats-embedded" help:"Run an embedded NATS server and connect to it" default:"false" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NATSHost          string `name:"nats-host" help:"Embedded server listen host" default:"127.0.0.1" toml:"nats.host" env:"NATS_HOST"`
	NATSPort          int    `name:"nats-port" help:"Embedded server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`
	NATSSubjectLED    string `name:"nats-subject-led" help:"Light command subject" default:"claude.led" toml:"nats.subject_led" env:"NATS_SUBJECT_LED"`
	NATSSubjectBuzzer string `name:"nats-subject-buzzer" help:"Buzzer command subject" default:"claude.buzzer" toml:"nats.subject_buzzer" env:"NATS_SUBJECT_BUZZER"`
	NATSEventsPrefix  string `name:"nats-events-prefix" help:"Subject prefix for mirrored events, empty disables" default:"lightnode.events" toml:"nats.events_prefix" env:"NATS_EVENTS_PREFIX"`

	// GPIO settings
	GPIODriver       string `name:"gpio-driver" help:"GPIO driver (auto, rpio, cdev, noop)" default:"auto" toml:"gpio.driver" env:"GPIO_DRIVER"`
	GPIOChip         string `name:"gpio-chip" help:"GPIO character device used by the cdev driver" default:"gpiochip0" toml:"gpio.chip" env:"GPIO_CHIP"`
	GPIORed          int    `name:"gpio-red" help:"Red channel BCM pin" default:"17" toml:"gpio.red" env:"GPIO_RED"`
	GPIOGreen        int    `name:"gpio-green" help:"Green channel BCM pin" default:"27" toml:"gpio.green" env:"GPIO_GREEN"`
	GPIOBlue         int    `name:"gpio-blue" help:"Blue channel BCM pin" default:"22" toml:"gpio.blue" env:"GPIO_BLUE"`
	GPIOBuzzer       int    `name:"gpio-buzzer" help:"Buzzer BCM pin" default:"18" toml:"gpio.buzzer" env:"GPIO_BUZZER"`
	GPIOCommonAnode  bool   `name:"gpio-common-anode" help:"LED is common anode (active low)" default:"true" toml:"gpio.common_anode" env:"GPIO_COMMON_ANODE"`
	GPIOPWMFrequency int    `name:"gpio-pwm-frequency" help:"Software PWM frequency in Hz" default:"100" toml:"gpio.pwm_frequency" env:"GPIO_PWM_FREQUENCY"`

	// Watchdog settings
	WatchdogInterval string `name:"watchdog-interval" help:"Heartbeat interval, capped at half of WatchdogSec" default:"25s" toml:"watchdog.interval" env:"WATCHDOG_INTERVAL"`

	// API settings
	APIEnabled bool   `name:"api-enabled" help:"Serve the HTTP API" default:"true" toml:"api.enabled" env:"API_ENABLED"`
	APIAddr    string `name:"api-addr" help:"HTTP API listen address" short:"p" default:":8090" toml:"api.addr" env:"API_ADDR"`

	// Logging settings
	LoggingLevel   string `name:"logging-level" help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `name:"logging-format" help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingEngine  string `name:"logging-engine" help:"Effect engine logging level" default:"info" toml:"logging.engine" env:"LOGGING_ENGINE"`
	LoggingBuzzer  string `name:"logging-buzzer" help:"Buzzer logging level" default:"info" toml:"logging.buzzer" env:"LOGGING_BUZZER"`
	LoggingCommand string `name:"logging-command" help:"Command dispatcher logging level" default:"info" toml:"logging.command" env:"LOGGING_COMMAND"`
	LoggingNATS    string `name:"logging-nats" help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
	LoggingGPIO    string `name:"logging-gpio" help:"GPIO logging level" default:"info" toml:"logging.gpio" env:"LOGGING_GPIO"`
	LoggingAPI     string `name:"logging-api" help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func (o *Options) daemonConfig() (daemon.Config, error) {
	interval, err := time.ParseDuration(o.WatchdogInterval)
	if err != nil {
		return daemon.Config{}, err
	}
	return daemon.Config{
		NATSURL:      o.NATSURL,
		NATSEmbedded: o.NATSEmbedded,
		NATSHost:     o.NATSHost,
		NATSPort:     o.NATSPort,
		Subjects: nats.Subjects{
			Light:  o.NATSSubjectLED,
			Buzzer: o.NATSSubjectBuzzer,
		},
		EventsPrefix: o.NATSEventsPrefix,
		GPIODriver:   o.GPIODriver,
		GPIOChip:     o.GPIOChip,
		Pins: gpio.Pins{
			Red:    o.GPIORed,
			Green:  o.GPIOGreen,
			Blue:   o.GPIOBlue,
			Buzzer: o.GPIOBuzzer,
		},
		CommonAnode:      o.GPIOCommonAnode,
		PWMFrequency:     o.GPIOPWMFrequency,
		WatchdogInterval: interval,
		APIEnabled:       o.APIEnabled,
		APIAddr:          o.APIAddr,
		ConfigPath:       o.Config,
	}, nil
}

func main() {
	var root *cobra.Command

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, root); loadErr != nil {
			slog.Error("Failed to load config", "error", loadErr)
			os.Exit(1)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"engine":  opts.LoggingEngine,
				"buzzer":  opts.LoggingBuzzer,
				"command": opts.LoggingCommand,
				"nats":    opts.LoggingNATS,
				"gpio":    opts.LoggingGPIO,
				"api":     opts.LoggingAPI,
				"http":    opts.LoggingAPI,
			},
		})
		logger := logging.GetLogger("main")

		cfg, err := opts.daemonConfig()
		if err != nil {
			logger.Error("Invalid watchdog interval", "value", opts.WatchdogInterval, "error", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		hooks.OnStart(func() {
			defer close(done)
			logger.Info("Starting lightnode", "version", version.String())
			if runErr := daemon.New(cfg, logging.GetLogger("daemon")).Run(ctx); runErr != nil {
				logger.Error("Daemon stopped", "error", runErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()
			<-done
		})
	})

	root = cli.Root()
	root.Use = version.Name
	root.Short = "RGB LED and buzzer driver controlled over NATS"
	root.Version = version.String()

	root.AddCommand(cmd.CreateSendCmd())
	root.AddCommand(cmd.CreateServiceCmd(systemd.DefaultUnit))

	cli.Run()
}
