// Package influxdb stores printer telemetry in InfluxDB v2.
//
// It wraps influxdb-client-go for the two measurements the bridge emits:
// printer_metrics (temperatures, progress, fan speeds, tagged by device
// and field) and connection_events (session status transitions).
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePrinterMetric("01S00A000000001", "nozzle_temper", 215.5, time.Now())
//
// Writes are batched and non-blocking; configure batch_size and
// flush_interval to trade latency against write amplification. Failures
// from the async path arrive through SetOnError, not as return values.
// Telemetry is optional: Connect returns ErrDisabled when switched off,
// and the bridge runs without it.
package influxdb
