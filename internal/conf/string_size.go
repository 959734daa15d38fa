package conf

import (
	"encoding/json"
	"fmt"
	"strconv"

	"code.cloudfoundry.org/bytefmt"
)

// StringSize is a size in bytes.
// It can be written as a human-readable string (4MB, 64KB) or as a plain number of bytes.
type StringSize uint64

// MarshalJSON implements json.Marshaler.
func (s StringSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(bytefmt.ByteSize(uint64(s)))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringSize) UnmarshalJSON(b []byte) error {
	var n uint64
	if err := json.Unmarshal(b, &n); err == nil {
		*s = StringSize(n)
		return nil
	}

	var in string
	if err := json.Unmarshal(b, &in); err != nil {
		return fmt.Errorf("invalid size: %s", string(b))
	}

	if n, err := strconv.ParseUint(in, 10, 64); err == nil {
		*s = StringSize(n)
		return nil
	}

	v, err := bytefmt.ToBytes(in)
	if err != nil {
		return fmt.Errorf("invalid size '%s': %w", in, err)
	}
	*s = StringSize(v)

	return nil
}

// UnmarshalEnv implements env.Unmarshaler.
func (s *StringSize) UnmarshalEnv(_ string, v string) error {
	return s.UnmarshalJSON([]byte(`"` + v + `"`))
}
