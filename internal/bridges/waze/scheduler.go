package waze

import (
	"time"

	"github.com/nerrad567/gray-logic-traveltime/internal/traveltime"
)

// sensorWorker owns the refresh loop of one sensor.
type sensorWorker struct {
	sensor *traveltime.Sensor

	// trigger holds at most one queued manual refresh.
	trigger chan struct{}
}

func newSensorWorker(sensor *traveltime.Sensor) *sensorWorker {
	return &sensorWorker{
		sensor:  sensor,
		trigger: make(chan struct{}, 1),
	}
}

func (w *sensorWorker) queue() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// runSensor waits out the startup grace, runs the eager first refresh and
// then refreshes every scan interval or when triggered. A trigger during
// the grace period starts the sensor early.
func (b *Bridge) runSensor(w *sensorWorker) {
	defer b.wg.Done()

	grace := time.NewTimer(b.cfg.StartupGraceDuration())
	defer grace.Stop()

	select {
	case <-b.done:
		return
	case <-grace.C:
	case <-w.trigger:
	}

	b.finishCycle(w.sensor, w.sensor.OnStart(b.ctx))

	ticker := time.NewTicker(b.cfg.ScanIntervalDuration())
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
		case <-w.trigger:
		}
		b.finishCycle(w.sensor, w.sensor.Refresh(b.ctx))
	}
}

// maintenanceLoop prunes old readings and expired geocode entries.
func (b *Bridge) maintenanceLoop() {
	defer b.wg.Done()

	b.runMaintenance()

	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.runMaintenance()
		}
	}
}

func (b *Bridge) runMaintenance() {
	if retention := b.cfg.HistoryRetention(); b.history != nil && retention > 0 {
		n, err := b.history.PruneHistory(b.ctx, retention)
		if err != nil {
			b.logger.Warn("failed to prune reading history", "error", err)
		} else if n > 0 {
			b.logger.Info("pruned reading history", "rows", n)
		}
	}

	if b.geocache != nil {
		n, err := b.geocache.Purge(b.ctx)
		if err != nil {
			b.logger.Warn("failed to purge geocode cache", "error", err)
		} else if n > 0 {
			b.logger.Debug("purged geocode cache", "rows", n)
		}
	}
}
