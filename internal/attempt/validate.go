package attempt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// validateValue checks a submitted payload against the item's declared type
// before anything is written. All failures wrap ErrInvalidValue.
func validateValue(item Item, raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: empty value", ErrInvalidValue)
	}
	switch item.Type {
	case "choice", "single_select":
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return fmt.Errorf("%w: expected a choice id string", ErrInvalidValue)
		}
		if !hasChoice(item.Choices, id) {
			return fmt.Errorf("%w: unknown choice %q", ErrInvalidValue, id)
		}
	case "multi_select":
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			return fmt.Errorf("%w: expected an array of option ids", ErrInvalidValue)
		}
		if len(ids) == 0 {
			return fmt.Errorf("%w: empty selection", ErrInvalidValue)
		}
		for _, id := range ids {
			if !hasChoice(item.Choices, id) {
				return fmt.Errorf("%w: unknown option %q", ErrInvalidValue, id)
			}
		}
	case "likert":
		n, err := likertValue(raw)
		if err != nil {
			return err
		}
		min, max := 1, 5
		if item.Scale != nil {
			min, max = item.Scale.Min, item.Scale.Max
		}
		if n < min || n > max {
			return fmt.Errorf("%w: %d outside scale %d..%d", ErrInvalidValue, n, min, max)
		}
	case "text":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("%w: expected a string", ErrInvalidValue)
		}
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: empty text", ErrInvalidValue)
		}
	default:
		return fmt.Errorf("%w: unsupported item type %q", ErrInvalidValue, item.Type)
	}
	return nil
}

// likertValue accepts a JSON number or a numeric string; clients are not
// consistent about which they send.
func likertValue(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: expected an integer", ErrInvalidValue)
}

func hasChoice(choices []Choice, id string) bool {
	for _, c := range choices {
		if c.ID == id {
			return true
		}
	}
	return false
}
