package mixpanel

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the text form of time.Time parameter values, e.g. from_date=2014-03-15.
const DateLayout = "2006-01-02"

// Params maps parameter names to values. A value is a string, an integer, a float, a bool,
// a time.Time (sent as a date) or a slice/array of those.
type Params map[string]any

var (
	errNestedSequence = errors.New("sequence elements must be scalars")
	errNonFinite      = errors.New("sequence numbers must be finite")
)

// normalize renders every value to the exact text that is signed and transmitted.
func (p Params) normalize() (map[string]string, error) {
	out := make(map[string]string, len(p))
	for k, v := range p {
		s, err := normalizeValue(k, v)
		if err != nil {
			return nil, err
		}
		out[k] = s
	}
	return out, nil
}

func normalizeValue(key string, v any) (string, error) {
	if s, ok := scalarText(v); ok {
		return s, nil
	}
	if v == nil {
		return "", &InvalidParameterError{Key: key, Value: v}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		// []byte is a blob, not a sequence.
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return "", &InvalidParameterError{Key: key, Value: v}
		}
		return encodeSequence(key, rv)
	default:
		return "", &InvalidParameterError{Key: key, Value: v}
	}
}

func scalarText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int8:
		return strconv.FormatInt(int64(t), 10), true
	case int16:
		return strconv.FormatInt(int64(t), 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case uint8:
		return strconv.FormatUint(uint64(t), 10), true
	case uint16:
		return strconv.FormatUint(uint64(t), 10), true
	case uint32:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case time.Time:
		return t.Format(DateLayout), true
	default:
		return "", false
	}
}

// encodeSequence renders a sequence as a JSON array with ", " between elements.
func encodeSequence(key string, rv reflect.Value) (string, error) {
	parts := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem, err := encodeElement(key, rv.Index(i).Interface())
		if err != nil {
			return "", err
		}
		parts = append(parts, elem)
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}

// encodeElement renders one sequence element. Strings and dates are JSON quoted; numbers and
// bools use the same text as a scalar value.
func encodeElement(key string, v any) (string, error) {
	switch t := v.(type) {
	case string:
		return quoteJSON(key, t)
	case time.Time:
		return quoteJSON(key, t.Format(DateLayout))
	case json.Number:
		if _, err := t.Float64(); err != nil {
			return "", &InvalidParameterError{Key: key, Value: v, Err: err}
		}
		return t.String(), nil
	case float32:
		if err := checkFinite(float64(t)); err != nil {
			return "", &InvalidParameterError{Key: key, Value: v, Err: err}
		}
	case float64:
		if err := checkFinite(t); err != nil {
			return "", &InvalidParameterError{Key: key, Value: v, Err: err}
		}
	}

	text, ok := scalarText(v)
	if !ok {
		return "", &InvalidParameterError{Key: key, Value: v, Err: errNestedSequence}
	}
	return text, nil
}

func quoteJSON(key, s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", &InvalidParameterError{Key: key, Value: s, Err: err}
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func checkFinite(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errNonFinite
	}
	return nil
}
