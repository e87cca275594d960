package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePrinterMetric writes a single printer measurement to InfluxDB.
//
// This is the primary method for recording printer telemetry and satisfies
// the bridge's telemetry writer contract. The write is non-blocking; data
// is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Printer serial (e.g., "01S00A000000001")
//   - field: The metric name (e.g., "nozzle_temper", "mc_percent")
//   - value: The numeric value to record
//   - timestamp: When the reading was observed
//
// Example:
//
//	client.WritePrinterMetric("01S00A000000001", "nozzle_temper", 215.5, time.Now())
//	client.WritePrinterMetric("01S00A000000001", "mc_percent", 42, time.Now())
func (c *Client) WritePrinterMetric(deviceID string, field string, value float64, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"printer_metrics",
		map[string]string{
			"device_id": deviceID,
			"field":     field,
		},
		map[string]interface{}{
			"value": value,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteConnectionEvent records a session lifecycle transition for a printer.
//
// Used to chart connection stability over time (connects, degradations,
// disconnects).
//
// Parameters:
//   - deviceID: Printer serial
//   - status: The new session status (e.g., "connected", "degraded")
func (c *Client) WriteConnectionEvent(deviceID string, status string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"connection_events",
		map[string]string{
			"device_id": deviceID,
			"status":    status,
		},
		map[string]interface{}{
			"value": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes an arbitrary point. Used for measurements without a
// dedicated helper, such as the periodic bridge_stats rollup.
//
// Example:
//
//	client.WritePoint("bridge_stats", nil,
//	    map[string]interface{}{"reports_merged": 1042, "dropped_updates": 3},
//	    time.Now())
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
