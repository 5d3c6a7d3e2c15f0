// Package telemetry writes periodic CSV records of tick timing, entity
// counts, and connection stats alongside the world save file, for
// offline inspection of a running server. Grounded on pthm-soup's
// telemetry/output.go OutputManager: one CSV per concern, headers
// written once, nil-receiver methods no-op so callers never branch on
// whether output is enabled.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// TickRecord is one row of tick.csv: how long a fixed-timestep step
// took and how deep the per-slot merge queues were at that tick.
type TickRecord struct {
	Tick           uint64  `csv:"tick"`
	TickDurationUS int64   `csv:"tick_duration_us"`
	QueueDepth     int     `csv:"queue_depth"`
	EntityCount    int     `csv:"entity_count"`
	PlayerCount    int     `csv:"player_count"`
	SimTimeSec     float64 `csv:"sim_time"`
}

// ConnectionRecord is one row of connections.csv: a connect/disconnect
// event for a slot.
type ConnectionRecord struct {
	Tick   uint64 `csv:"tick"`
	Slot   int    `csv:"slot"`
	Event  string `csv:"event"` // "connect" or "disconnect"
	Reason uint8  `csv:"reason"`
}

// OutputManager owns the open CSV files for one server run. A nil
// *OutputManager is valid and every method on it is a no-op, so
// callers can construct it unconditionally and only check the error
// from New.
type OutputManager struct {
	dir string

	tickFile       *os.File
	connectionFile *os.File

	tickHeaderWritten       bool
	connectionHeaderWritten bool
}

// New opens tick.csv and connections.csv under dir. Returns (nil, nil)
// if dir is empty, so an unconfigured output dir disables telemetry
// entirely rather than erroring.
func New(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating telemetry output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	tickFile, err := os.Create(filepath.Join(dir, "tick.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating tick.csv: %w", err)
	}
	om.tickFile = tickFile

	connFile, err := os.Create(filepath.Join(dir, "connections.csv"))
	if err != nil {
		om.tickFile.Close()
		return nil, fmt.Errorf("creating connections.csv: %w", err)
	}
	om.connectionFile = connFile

	return om, nil
}

// Dir returns the output directory, or "" for a nil/disabled manager.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// WriteTick appends one tick record.
func (om *OutputManager) WriteTick(rec TickRecord) error {
	if om == nil {
		return nil
	}
	records := []TickRecord{rec}
	if !om.tickHeaderWritten {
		if err := gocsv.Marshal(records, om.tickFile); err != nil {
			return fmt.Errorf("writing tick record: %w", err)
		}
		om.tickHeaderWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, om.tickFile); err != nil {
		return fmt.Errorf("writing tick record: %w", err)
	}
	return nil
}

// WriteConnection appends one connect/disconnect event.
func (om *OutputManager) WriteConnection(rec ConnectionRecord) error {
	if om == nil {
		return nil
	}
	records := []ConnectionRecord{rec}
	if !om.connectionHeaderWritten {
		if err := gocsv.Marshal(records, om.connectionFile); err != nil {
			return fmt.Errorf("writing connection record: %w", err)
		}
		om.connectionHeaderWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, om.connectionFile); err != nil {
		return fmt.Errorf("writing connection record: %w", err)
	}
	return nil
}

// Close flushes and closes all open output files. Safe to call on a
// nil manager.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	var firstErr error
	if om.tickFile != nil {
		if err := om.tickFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if om.connectionFile != nil {
		if err := om.connectionFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
