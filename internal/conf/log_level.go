package conf

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bluenviron/mp4remuxer/internal/logger"
)

var logLevelNames = []struct {
	name  string
	level logger.Level
}{
	{"error", logger.Error},
	{"warn", logger.Warn},
	{"info", logger.Info},
	{"debug", logger.Debug},
}

// LogLevel is the logLevel parameter.
type LogLevel logger.Level

// MarshalJSON implements json.Marshaler.
func (d LogLevel) MarshalJSON() ([]byte, error) {
	for _, e := range logLevelNames {
		if LogLevel(e.level) == d {
			return json.Marshal(e.name)
		}
	}
	return nil, fmt.Errorf("invalid log level: %v", d)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *LogLevel) UnmarshalJSON(b []byte) error {
	var in string
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	names := make([]string, len(logLevelNames))
	for i, e := range logLevelNames {
		if strings.EqualFold(e.name, in) {
			*d = LogLevel(e.level)
			return nil
		}
		names[i] = e.name
	}

	return fmt.Errorf("invalid log level: '%s' (allowed: %s)", in, strings.Join(names, ", "))
}

// UnmarshalEnv implements env.Unmarshaler.
func (d *LogLevel) UnmarshalEnv(_ string, v string) error {
	return d.UnmarshalJSON([]byte(`"` + v + `"`))
}
