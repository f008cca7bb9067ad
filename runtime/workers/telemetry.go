package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"rendezvous/contract"
)

// TelemetryWorker periodically logs process health (CPU, RSS) together with
// the live room and session gauges of the registry. Purely observational:
// it never mutates relay state.
type TelemetryWorker struct {
	log      *slog.Logger
	interval time.Duration
	registry contract.IRegistry
}

func NewTelemetryWorker(log *slog.Logger, interval time.Duration, registry contract.IRegistry) *TelemetryWorker {
	return &TelemetryWorker{log: log, interval: interval, registry: registry}
}

// Run executes the main loop of the worker, reporting health metrics on a
// fixed interval until the context is canceled.
func (w *TelemetryWorker) Run(ctx context.Context) error {
	w.log.Info("Starting relay telemetry worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			rooms, sessions := w.registry.Stats()
			w.log.Info("Relay stats",
				"rooms", rooms,
				"sessions", sessions,
				"cpu_percent", cpu,
				"ram_bytes", rss,
			)
		}
	}
}

// selfStats retrieves memory and CPU metrics for the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
