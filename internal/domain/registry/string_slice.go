package registry

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringSlice persists a []string as a jsonb column. gorm's postgres driver
// has no native text[] scanner wired into this repo's dependency set, so tag
// lists and filter lists round-trip through JSON the same way
// schema_composition_errors does.
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal([]string(s))
}

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("registry: unsupported Scan type %T for StringSlice", value)
	}
	if len(raw) == 0 {
		*s = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*s = out
	return nil
}
