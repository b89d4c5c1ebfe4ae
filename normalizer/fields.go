package normalizer

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-fiction-books/models"
)

// MaxYearMagnitude bounds coerced years; anything larger is treated as invalid.
const MaxYearMagnitude = 9999

var numericText = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Title returns the display title of a raw value. Absent, null and empty
// string titles report false. Non-string JSON values keep their JSON text.
func Title(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if isNull(trimmed) {
		return "", false
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil || s == "" {
			return "", false
		}
		return s, true
	}
	return string(trimmed), true
}

// JoinAuthors flattens a JSON array of strings into one value joined with
// models.AuthorDelimiter. Any other shape reports false.
func JoinAuthors(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return "", false
	}

	var items []any
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return "", false
	}
	names := make([]string, len(items))
	for i, item := range items {
		name, ok := item.(string)
		if !ok {
			return "", false
		}
		names[i] = name
	}
	return strings.Join(names, models.AuthorDelimiter), true
}

// CoerceYear converts a JSON number, or a string holding a decimal number,
// to an integer year. Fractional, non-finite and out-of-range values report
// false, as does anything that is not numeric.
func CoerceYear(raw json.RawMessage) (int, bool) {
	trimmed := bytes.TrimSpace(raw)
	if isNull(trimmed) {
		return 0, false
	}

	var text string
	switch trimmed[0] {
	case '"':
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return 0, false
		}
		text = strings.TrimSpace(text)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		text = string(trimmed)
	default:
		return 0, false
	}

	if !numericText.MatchString(text) {
		return 0, false
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	if value != math.Trunc(value) || math.Abs(value) > MaxYearMagnitude {
		return 0, false
	}
	return int(value), true
}

func isNull(v []byte) bool {
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}
