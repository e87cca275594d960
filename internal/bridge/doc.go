// Package bridge composes per-device broker sessions, incremental state
// merging, and command dispatch into a single fleet-facing surface.
//
// Each registered printer gets its own session, its own authoritative state
// tree, and its own bounded update queue. Inbound reports are decoded,
// merged into the device's tree, matched against pending commands, and then
// fanned out to the update consumer, the snapshot repository, and the
// telemetry writer from a per-device worker goroutine. When a queue is full
// the oldest update is dropped so a slow consumer can never stall ingestion.
//
// Thread Safety: all exported methods are safe for concurrent use.
package bridge
