package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/lightnode/internal/logging"
	"github.com/smazurov/lightnode/internal/systemd"
)

const serviceTimeout = 30 * time.Second

// unitController is the part of systemd.Manager the service command uses.
type unitController interface {
	Status(ctx context.Context, unit string) (systemd.UnitStatus, error)
	Restart(ctx context.Context, unit string) (string, error)
	Close()
}

// CreateServiceCmd creates the service command. defaultUnit is used when no
// unit argument is given.
func CreateServiceCmd(defaultUnit string) *cobra.Command {
	var user bool

	connect := func(ctx context.Context) (unitController, error) {
		mgr, err := systemd.NewManager(ctx, user)
		if err != nil {
			return nil, err
		}
		return mgr, nil
	}

	cmd := &cobra.Command{
		Use:   "service",
		Short: "Inspect or restart the systemd unit",
	}
	cmd.PersistentFlags().BoolVar(&user, "user", false, "Talk to the user service manager instead of the system one")

	cmd.AddCommand(&cobra.Command{
		Use:   "status [unit]",
		Short: "Show unit state",
		Args:  cobra.MaximumNArgs(1),
		Run: func(c *cobra.Command, args []string) {
			exitOnError(serviceStatus(c.Context(), connect, unitArg(args, defaultUnit), c.OutOrStdout()))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restart [unit]",
		Short: "Restart the unit and wait for the job",
		Args:  cobra.MaximumNArgs(1),
		Run: func(c *cobra.Command, args []string) {
			exitOnError(serviceRestart(c.Context(), connect, unitArg(args, defaultUnit), c.OutOrStdout()))
		},
	})

	return cmd
}

func unitArg(args []string, fallback string) string {
	if len(args) > 0 {
		return args[0]
	}
	return fallback
}

func exitOnError(err error) {
	if err != nil {
		logging.GetLogger("service").Error("Service command failed", "error", err)
		os.Exit(1)
	}
}

func serviceStatus(ctx context.Context, connect func(context.Context) (unitController, error), unit string, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	mgr, err := connect(ctx)
	if err != nil {
		return err
	}
	defer mgr.Close()

	status, err := mgr.Status(ctx, unit)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s (%s), %s\n", status.Unit, status.ActiveState, status.SubState, status.LoadState)
	return nil
}

func serviceRestart(ctx context.Context, connect func(context.Context) (unitController, error), unit string, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	mgr, err := connect(ctx)
	if err != nil {
		return err
	}
	defer mgr.Close()

	if _, err := mgr.Restart(ctx, unit); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s restarted\n", unit)
	return nil
}
