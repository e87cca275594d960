// Package command tracks outstanding printer commands.
//
// Every outbound command carries a correlation id (the wire sequence_id).
// The printer echoes the id back in a later report; this package matches
// those echoes to pending commands and times out the ones that never get
// one. Some command types never produce an echo at all, so a timeout is an
// expected steady-state outcome rather than a failure of the bridge.
//
// Acknowledgement means the device accepted the command for processing, not
// that the physical action succeeded. Job-level success or failure shows up
// as ordinary state fields in subsequent reports.
//
// The dispatcher never blocks on network I/O: Submit records intent and
// hands the encoded payload to the Publisher; the timeout sweep runs on its
// own ticker, independent of ingestion.
package command
