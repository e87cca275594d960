// Package wire implements the MQTT payload codec for printer traffic.
//
// This package translates between raw broker payloads and the generic state
// trees used by the rest of the bridge:
//
//   - Inbound: `device/<serial>/report` payloads decode into a partial-update
//     tree under the top-level "print" namespace. Any subset of fields may be
//     present in a given report.
//   - Outbound: commands encode as
//     {"print":{"command":...,"sequence_id":...,"param":{...}}}
//     published to `device/<serial>/request`.
//
// The codec is stateless: no ordering or session information is retained
// between calls. Correlation between commands and their acknowledgements is
// the command dispatcher's concern; this package only carries the
// sequence_id field across the wire.
package wire
