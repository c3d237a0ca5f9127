package mdpa

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// formatValue renders an annotation value so that parseValue reads back the
// same value with the same dynamic type.
func formatValue(v any) (string, error) {
	switch v := v.(type) {
	case int:
		return strconv.Itoa(v), nil
	case float64:
		return formatFloat(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case string:
		return strconv.Quote(v), nil
	case []float64:
		parts := make([]string, len(v))
		for i, f := range v {
			parts[i] = formatFloat(f)
		}
		return fmt.Sprintf("[%d] (%s)", len(v), strings.Join(parts, ", ")), nil
	default:
		return "", fmt.Errorf("%T: %w", v, ErrUnsupportedValue)
	}
}

// formatFloat uses the shortest exact representation, always marked as a
// float so it does not read back as an int.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if math.IsInf(f, 0) || math.IsNaN(f) || strings.ContainsAny(s, ".e") {
		return s
	}
	return s + ".0"
}

func parseValue(s string) (any, error) {
	switch {
	case s == "":
		return nil, fmt.Errorf("missing value")
	case strings.HasPrefix(s, `"`):
		return strconv.Unquote(s)
	case strings.HasPrefix(s, "["):
		return parseVector(s)
	case s == "true":
		return true, nil
	case s == "false":
		return false, nil
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("value %q is neither a number, a bool, a quoted string nor a vector", s)
	}
	return f, nil
}

// parseVector reads "[n] (v1, v2, ..., vn)".
func parseVector(s string) ([]float64, error) {
	size, rest, ok := strings.Cut(s[1:], "]")
	if !ok {
		return nil, fmt.Errorf("vector %q: missing ']'", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(size))
	if err != nil || n < 0 {
		return nil, fmt.Errorf("vector %q: invalid size", s)
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return nil, fmt.Errorf("vector %q: components must be enclosed in parentheses", s)
	}
	rest = strings.TrimSpace(rest[1 : len(rest)-1])
	v := make([]float64, 0, n)
	if rest != "" {
		for _, c := range strings.Split(rest, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
			if err != nil {
				return nil, fmt.Errorf("vector %q: %w", s, err)
			}
			v = append(v, f)
		}
	}
	if len(v) != n {
		return nil, fmt.Errorf("vector %q: declares %d components, has %d", s, n, len(v))
	}
	return v, nil
}
