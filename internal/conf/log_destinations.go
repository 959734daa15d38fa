package conf

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bluenviron/mp4remuxer/internal/logger"
)

// LogDestination is a log destination.
type LogDestination logger.Destination

// MarshalJSON implements json.Marshaler.
func (d LogDestination) MarshalJSON() ([]byte, error) {
	var out string

	switch d {
	case LogDestination(logger.DestinationStderr):
		out = "stderr"

	case LogDestination(logger.DestinationFile):
		out = "file"

	default:
		return nil, fmt.Errorf("invalid log destination: %v", d)
	}

	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *LogDestination) UnmarshalJSON(b []byte) error {
	var in string
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	switch in {
	case "stderr":
		*d = LogDestination(logger.DestinationStderr)

	case "file":
		*d = LogDestination(logger.DestinationFile)

	default:
		return fmt.Errorf("invalid log destination: '%s'", in)
	}

	return nil
}

// LogDestinations is the logDestinations parameter.
type LogDestinations []LogDestination

// UnmarshalJSON implements json.Unmarshaler.
func (d *LogDestinations) UnmarshalJSON(b []byte) error {
	var in []LogDestination
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	seen := make(map[LogDestination]struct{})
	for _, dest := range in {
		if _, ok := seen[dest]; ok {
			return fmt.Errorf("log destination set twice")
		}
		seen[dest] = struct{}{}
	}

	*d = in
	return nil
}

// UnmarshalEnv implements env.Unmarshaler.
func (d *LogDestinations) UnmarshalEnv(_ string, v string) error {
	byts, _ := json.Marshal(strings.Split(v, ","))
	return d.UnmarshalJSON(byts)
}

// ToDestinations converts to a logger.Destination slice.
func (d LogDestinations) ToDestinations() []logger.Destination {
	out := make([]logger.Destination, len(d))
	for i, v := range d {
		out[i] = logger.Destination(v)
	}
	return out
}
