package wire

import (
	"fmt"
	"strings"
)

// Topic convention for printer traffic. Every printer has exactly two topics
// under the device namespace, keyed by its serial number.
const (
	// TopicPrefixDevice is the base for all per-printer topics.
	TopicPrefixDevice = "device"

	// channelReport carries inbound partial state reports from the printer.
	channelReport = "report"

	// channelRequest carries outbound commands to the printer.
	channelRequest = "request"

	// topicParts is the number of segments in a well-formed device topic.
	topicParts = 3
)

// Topics provides builders for printer MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := wire.Topics{}
//	reportTopic := topics.Report("01S00A000000000")
//	// Returns: "device/01S00A000000000/report"
type Topics struct{}

// Report returns the inbound report topic for a printer.
//
// Example: device/01S00A000000000/report
func (Topics) Report(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixDevice, deviceID, channelReport)
}

// Request returns the outbound command topic for a printer.
//
// Example: device/01S00A000000000/request
func (Topics) Request(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixDevice, deviceID, channelRequest)
}

// DeviceIDFromTopic extracts the printer serial from a device topic.
// Returns ErrUnexpectedTopic if the topic does not follow the
// device/<serial>/<channel> convention.
func DeviceIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != topicParts || parts[0] != TopicPrefixDevice || parts[1] == "" {
		return "", fmt.Errorf("%w: %q", ErrUnexpectedTopic, topic)
	}
	if parts[2] != channelReport && parts[2] != channelRequest {
		return "", fmt.Errorf("%w: unknown channel in %q", ErrUnexpectedTopic, topic)
	}
	return parts[1], nil
}
