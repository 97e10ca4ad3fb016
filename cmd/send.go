package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/lightnode/internal/config"
	"github.com/smazurov/lightnode/internal/logging"
	"github.com/smazurov/lightnode/internal/nats"
	"github.com/smazurov/lightnode/internal/version"
)

const sendTimeout = 5 * time.Second

// sendOptions are the connection settings shared by send subcommands. They
// are read from the daemon's config file unless given as flags.
type sendOptions struct {
	Config        string `name:"config"`
	NATSURL       string `name:"url" toml:"nats.url" env:"NATS_URL"`
	SubjectLED    string `name:"subject-led" toml:"nats.subject_led" env:"NATS_SUBJECT_LED"`
	SubjectBuzzer string `name:"subject-buzzer" toml:"nats.subject_buzzer" env:"NATS_SUBJECT_BUZZER"`
}

func (o *sendOptions) subjects() nats.Subjects {
	return nats.Subjects{Light: o.SubjectLED, Buzzer: o.SubjectBuzzer}
}

// CreateSendCmd creates the send command.
func CreateSendCmd() *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Publish a light or buzzer command",
		Long:  `Publishes one command on the subjects the daemon listens to, the same way any other controller would.`,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.Config, "config", "c", "config.toml", "Path to configuration file")
	flags.StringVar(&opts.NATSURL, "url", "nats://127.0.0.1:4222", "NATS server URL")
	flags.StringVar(&opts.SubjectLED, "subject-led", nats.DefaultSubjectLight, "Light command subject")
	flags.StringVar(&opts.SubjectBuzzer, "subject-buzzer", nats.DefaultSubjectBuzzer, "Buzzer command subject")

	cmd.AddCommand(createSendLEDCmd(opts), createSendBuzzerCmd(opts))
	return cmd
}

func createSendLEDCmd(opts *sendOptions) *cobra.Command {
	msg := nats.DefaultLight()

	cmd := &cobra.Command{
		Use:   "led",
		Short: "Start a light effect",
		Example: `  lightnode send led --r 255 --pattern blink --times 3
  lightnode send led --pattern off`,
		Args: cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			runSend(c, opts, func(ctx context.Context, pub *nats.Publisher) error {
				return pub.PublishLight(ctx, msg)
			})
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&msg.R, "r", msg.R, "Red 0-255")
	flags.Float64Var(&msg.G, "g", msg.G, "Green 0-255")
	flags.Float64Var(&msg.B, "b", msg.B, "Blue 0-255")
	flags.StringVar(&msg.Pattern, "pattern", msg.Pattern, "Pattern (solid, blink, pulse, rainbow, off)")
	flags.Float64Var(&msg.Times, "times", msg.Times, "Repeat count, 999 repeats until replaced")
	flags.Float64Var(&msg.Duration, "duration", msg.Duration, "Solid hold in seconds, 0 holds until replaced")
	flags.Float64Var(&msg.Interval, "interval", msg.Interval, "Step interval in seconds")
	return cmd
}

func createSendBuzzerCmd(opts *sendOptions) *cobra.Command {
	msg := nats.DefaultTone()

	cmd := &cobra.Command{
		Use:     "buzzer",
		Short:   "Sound a tone",
		Example: `  lightnode send buzzer --frequency 2000 --duration 200`,
		Args:    cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			runSend(c, opts, func(ctx context.Context, pub *nats.Publisher) error {
				return pub.PublishTone(ctx, msg)
			})
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&msg.Frequency, "frequency", msg.Frequency, "Tone frequency in Hz")
	flags.Float64Var(&msg.Duration, "duration", msg.Duration, "Tone duration in milliseconds")
	return cmd
}

func runSend(c *cobra.Command, opts *sendOptions, publish func(context.Context, *nats.Publisher) error) {
	logger := logging.GetLogger("send")

	if err := send(c, opts, publish); err != nil {
		logger.Error("Send failed", "error", err)
		os.Exit(1)
	}
}

// send resolves the connection settings, connects and publishes once.
func send(c *cobra.Command, opts *sendOptions, publish func(context.Context, *nats.Publisher) error) error {
	if err := config.LoadConfig(opts, c); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pub, err := nats.NewPublisher(opts.NATSURL, version.ClientName("send"), opts.subjects(), logging.GetLogger("send"))
	if err != nil {
		return err
	}
	defer pub.Close()

	ctx, cancel := context.WithTimeout(c.Context(), sendTimeout)
	defer cancel()
	return publish(ctx, pub)
}
