package retention

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingCohortData matches every MissingDataError.
var ErrMissingCohortData = errors.New("missing cohort data")

// MissingDataError reports that a segmentation result lacks the count for Event on Date.
type MissingDataError struct {
	Event string
	Date  string
	// Path is the key path up to the first missing or mistyped element.
	Path []string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("%s: event %q on %s (at %s)", ErrMissingCohortData, e.Event, e.Date, strings.Join(e.Path, "."))
}

func (e *MissingDataError) Is(target error) bool { return target == ErrMissingCohortData }

// lookupCount reads data.values[event][date] from a decoded segmentation response.
func lookupCount(v any, event, date string) (int64, error) {
	path := []string{"data", "values", event, date}
	cur := v
	for i, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return 0, &MissingDataError{Event: event, Date: date, Path: path[:i]}
		}
		next, ok := obj[key]
		if !ok {
			return 0, &MissingDataError{Event: event, Date: date, Path: path[:i+1]}
		}
		cur = next
	}

	switch n := cur.(type) {
	case float64:
		return int64(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	return 0, &MissingDataError{Event: event, Date: date, Path: path}
}
