package bridge

import (
	"time"

	"github.com/printwatch/printwatch-core/internal/state"
)

// TelemetryWriter receives numeric readings extracted from merged reports.
// Implementations must not block; buffer internally and flush asynchronously.
type TelemetryWriter interface {
	WritePrinterMetric(deviceID, field string, value float64, timestamp time.Time)
}

// metricPaths are the numeric leaves forwarded to telemetry when a report
// changes them. The field name written is the final path segment.
var metricPaths = []string{
	"print.nozzle_temper",
	"print.nozzle_target_temper",
	"print.bed_temper",
	"print.bed_target_temper",
	"print.chamber_temper",
	"print.mc_percent",
	"print.mc_remaining_time",
	"print.layer_num",
	"print.total_layer_num",
	"print.spd_lvl",
	"print.fan_gear",
	"print.wifi_signal",
}

// writeTelemetry forwards changed metric leaves from a merged snapshot.
func writeTelemetry(w TelemetryWriter, u Update, now time.Time) {
	changed := make(map[string]bool, len(u.ChangedPaths))
	for _, path := range u.ChangedPaths {
		changed[path] = true
	}

	for _, path := range metricPaths {
		if !changed[path] {
			continue
		}
		value, ok := state.Leaf(u.State, path)
		if !ok {
			continue
		}
		number, ok := state.Number(value)
		if !ok {
			continue
		}
		w.WritePrinterMetric(u.DeviceID, metricField(path), number, now)
	}
}

// metricField returns the final segment of a dotted path.
func metricField(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return path
}
