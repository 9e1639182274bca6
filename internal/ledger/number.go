package ledger

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Number is a lenient float for client-supplied macros. Strings are parsed by
// their leading numeric prefix ("12.5g" → 12.5); anything unparsable, NaN,
// ±Inf or negative becomes 0. Decoding a Number never fails.
type Number float64

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number(ParseNumber(data))
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(Sanitize(float64(n)))
}

func (n Number) Float() float64 {
	return Sanitize(float64(n))
}

// ParseNumber coerces a raw JSON value to a non-negative finite float.
func ParseNumber(raw []byte) float64 {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0
	}

	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal([]byte(s), &unquoted); err != nil {
			return 0
		}
		s = strings.TrimSpace(unquoted)
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return Sanitize(v)
	}

	prefix := numericPrefix.FindString(s)
	if prefix == "" {
		return 0
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0
	}
	return Sanitize(v)
}

// Sanitize maps NaN, ±Inf and negatives to 0.
func Sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
