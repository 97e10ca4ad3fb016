package systemd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// DefaultUnit is the unit name the packaged service installs.
const DefaultUnit = "lightnode.service"

// UnitStatus is the subset of unit properties the CLI prints.
type UnitStatus struct {
	Unit        string
	LoadState   string
	ActiveState string
	SubState    string
}

// Manager controls units over D-Bus.
type Manager struct {
	conn *dbus.Conn
}

// NewManager connects to the user bus when user is set, otherwise to the
// system bus where lightnode normally runs.
func NewManager(ctx context.Context, user bool) (*Manager, error) {
	connect := dbus.NewSystemConnectionContext
	if user {
		connect = dbus.NewUserConnectionContext
	}
	conn, err := connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to systemd: %w", err)
	}
	return &Manager{conn: conn}, nil
}

// Status reads the unit's load and activation state.
func (m *Manager) Status(ctx context.Context, unit string) (UnitStatus, error) {
	props, err := m.conn.GetUnitPropertiesContext(ctx, unit)
	if err != nil {
		return UnitStatus{}, fmt.Errorf("get properties of %s: %w", unit, err)
	}
	return UnitStatus{
		Unit:        unit,
		LoadState:   stringProp(props, "LoadState"),
		ActiveState: stringProp(props, "ActiveState"),
		SubState:    stringProp(props, "SubState"),
	}, nil
}

// Restart restarts unit and waits for the job to finish. It returns the
// job result ("done" on success).
func (m *Manager) Restart(ctx context.Context, unit string) (string, error) {
	return m.runJob(ctx, unit, m.conn.RestartUnitContext)
}

// Stop stops unit and waits for the job to finish.
func (m *Manager) Stop(ctx context.Context, unit string) (string, error) {
	return m.runJob(ctx, unit, m.conn.StopUnitContext)
}

// Start starts unit and waits for the job to finish.
func (m *Manager) Start(ctx context.Context, unit string) (string, error) {
	return m.runJob(ctx, unit, m.conn.StartUnitContext)
}

type jobFunc func(ctx context.Context, name, mode string, ch chan<- string) (int, error)

func (m *Manager) runJob(ctx context.Context, unit string, job jobFunc) (string, error) {
	ch := make(chan string, 1)
	if _, err := job(ctx, unit, "replace", ch); err != nil {
		return "", fmt.Errorf("queue job for %s: %w", unit, err)
	}
	select {
	case result := <-ch:
		if result != "done" {
			return result, fmt.Errorf("job for %s finished with %q", unit, result)
		}
		return result, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close cleanly closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}
