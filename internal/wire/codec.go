package wire

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/printwatch/printwatch-core/internal/state"
)

// Namespace is the top-level key wrapping every report and command payload.
const Namespace = "print"

// Command names understood by printer firmware.
const (
	CommandStart   = "start"
	CommandPause   = "pause"
	CommandResume  = "resume"
	CommandStop    = "stop"
	CommandPushAll = "pushall"
)

// Command is an outbound instruction for a printer.
// Build instances with the constructors below rather than by hand; they
// carry the parameter shapes the firmware expects.
type Command struct {
	// Name is the firmware command verb (e.g. "pause").
	Name string

	// Param holds command-specific parameters. Nil for parameterless commands.
	Param map[string]any
}

// Pause returns the command that pauses the current print job.
func Pause() Command { return Command{Name: CommandPause} }

// Resume returns the command that resumes a paused print job.
func Resume() Command { return Command{Name: CommandResume} }

// Stop returns the command that aborts the current print job.
func Stop() Command { return Command{Name: CommandStop} }

// Start returns the command that starts a print job for the given file.
func Start(file string) Command {
	return Command{Name: CommandStart, Param: map[string]any{"url": file}}
}

// PushAll returns the full-status request. The printer responds with a
// complete state report instead of a delta, which is how a fresh session
// converges to a full snapshot.
func PushAll() Command {
	return Command{Name: CommandPushAll, Param: map[string]any{
		"version":     1,
		"push_target": 1,
	}}
}

// Decode parses a raw broker payload into a partial-update tree.
//
// The printer serial is derived from the topic, not the payload. A payload
// that is not a JSON object yields ErrMalformedPayload; callers log and drop
// such messages without touching device state.
func Decode(topic string, payload []byte) (string, state.Tree, error) {
	deviceID, err := DeviceIDFromTopic(topic)
	if err != nil {
		return "", nil, err
	}

	var delta state.Tree
	if err := json.Unmarshal(payload, &delta); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if delta == nil {
		return "", nil, fmt.Errorf("%w: null payload", ErrMalformedPayload)
	}
	return deviceID, delta, nil
}

// EncodeCommand serialises a command for a printer and derives its outbound
// topic. Encoding is total for well-formed commands; the correlation id is
// embedded as sequence_id so the device can echo it back in a later report.
func EncodeCommand(deviceID string, cmd Command, correlationID string) (string, []byte, error) {
	if deviceID == "" {
		return "", nil, fmt.Errorf("%w: device id is required", ErrInvalidCommand)
	}
	if cmd.Name == "" {
		return "", nil, fmt.Errorf("%w: command name is required", ErrInvalidCommand)
	}

	body := map[string]any{
		"command":     cmd.Name,
		"sequence_id": correlationID,
	}
	if cmd.Param != nil {
		body["param"] = cmd.Param
	}

	payload, err := json.Marshal(map[string]any{Namespace: body})
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return Topics{}.Request(deviceID), payload, nil
}

// SequenceID extracts the correlation id echoed in a report, if present.
// Devices report the field as a string, but some firmware versions send a
// JSON number; both are accepted.
func SequenceID(delta state.Tree) (string, bool) {
	ns, ok := delta[Namespace].(map[string]any)
	if !ok {
		return "", false
	}
	switch seq := ns["sequence_id"].(type) {
	case string:
		if seq == "" {
			return "", false
		}
		return seq, true
	case float64:
		return strconv.FormatFloat(seq, 'f', -1, 64), true
	default:
		return "", false
	}
}
