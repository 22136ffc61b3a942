package config

import "time"

// Duration wraps time.Duration so it marshals to/from TOML as a string
// ("1h", "30s") rather than an opaque integer nanosecond count, matching
// the TOML-friendly wrapper-type convention the teacher's own config
// package follows for its Duration/LogLevel fields.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}
