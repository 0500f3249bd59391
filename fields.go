package xstream

import (
	"fmt"
	"strconv"
)

// Fields is the flat field map stored in one stream entry. Values written by
// the library must be scalars; values read back from an engine are strings.
type Fields map[string]any

// Lookup returns the string form of key.
func (f Fields) Lookup(key string) (string, bool) {
	v, ok := f[key]
	if !ok || v == nil {
		return "", false
	}
	s, err := FormatValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v), true
	}
	return s, true
}

// String returns the string form of key, or "" when absent.
func (f Fields) String(key string) string {
	s, _ := f.Lookup(key)
	return s
}

func (f Fields) Bytes(key string) []byte {
	if b, ok := f[key].([]byte); ok {
		return b
	}
	s, ok := f.Lookup(key)
	if !ok {
		return nil
	}
	return []byte(s)
}

func (f Fields) Int64(key string) (int64, error) {
	if n, ok := toInt64(f[key]); ok {
		return n, nil
	}
	s, ok := f.Lookup(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrFieldNotFound, key)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidField, key, err)
	}
	return n, nil
}

func (f Fields) Float64(key string) (float64, error) {
	s, ok := f.Lookup(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrFieldNotFound, key)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidField, key, err)
	}
	return v, nil
}

// Bool accepts the "1"/"0" encoding written for booleans as well as strconv forms.
func (f Fields) Bool(key string) (bool, error) {
	s, ok := f.Lookup(key)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrFieldNotFound, key)
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrInvalidField, key, err)
	}
	return v, nil
}

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Validate rejects empty maps, empty keys and non-scalar values.
func (f Fields) Validate() error {
	if len(f) == 0 {
		return fmt.Errorf("%w: entry needs at least one field", ErrInvalidField)
	}
	for k, v := range f {
		if k == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidField)
		}
		if _, err := FormatValue(v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidField, k, err)
		}
	}
	return nil
}

// Strings renders every value the way the engine stores it.
func (f Fields) Strings() (map[string]string, error) {
	out := make(map[string]string, len(f))
	for k, v := range f {
		s, err := FormatValue(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidField, k, err)
		}
		out[k] = s
	}
	return out, nil
}

// FormatValue renders a scalar field value in its stored string form.
func FormatValue(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case int:
		return strconv.FormatInt(int64(s), 10), nil
	case int8:
		return strconv.FormatInt(int64(s), 10), nil
	case int16:
		return strconv.FormatInt(int64(s), 10), nil
	case int32:
		return strconv.FormatInt(int64(s), 10), nil
	case int64:
		return strconv.FormatInt(s, 10), nil
	case uint:
		return strconv.FormatUint(uint64(s), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(s), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(s), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(s), 10), nil
	case uint64:
		return strconv.FormatUint(s, 10), nil
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case bool:
		if s {
			return "1", nil
		}
		return "0", nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case string:
		if n == "" {
			return 0, false
		}
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, true
		}
	case []byte:
		return toInt64(string(n))
	}
	return 0, false
}
