package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"actionplan/internal/workbook"
)

// dottedDate is the day.month.year form used by the action-plan template.
// Single-digit days and months are accepted.
const dottedDate = "2.1.2006"

// NormalizeScalar turns a raw cell value into its canonical text. ok is false
// when the value is null: nil, empty or whitespace only. Single-element
// composites are unwrapped first.
func NormalizeScalar(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case nil:
		return "", false
	case workbook.Scalar:
		if x.IsNull() {
			return "", false
		}
		s = x.String()
	case *workbook.Scalar:
		if x == nil {
			return "", false
		}
		return NormalizeScalar(*x)
	case string:
		s = x
	case *string:
		if x == nil {
			return "", false
		}
		s = *x
	case []any:
		return normalizeComposite(len(x), func(i int) any { return x[i] })
	case []string:
		return normalizeComposite(len(x), func(i int) any { return x[i] })
	case []workbook.Scalar:
		return normalizeComposite(len(x), func(i int) any { return x[i] })
	case bool:
		s = strconv.FormatBool(x)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case int32:
		s = strconv.FormatInt(int64(x), 10)
	case uint:
		s = strconv.FormatUint(uint64(x), 10)
	case uint64:
		s = strconv.FormatUint(x, 10)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		s = workbook.DateValue(x).String()
	default:
		s = fmt.Sprint(x)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// normalizeComposite unwraps a one-element composite. Longer composites are
// rendered as their non-null elements joined by ", ".
func normalizeComposite(n int, at func(int) any) (string, bool) {
	if n == 1 {
		return NormalizeScalar(at(0))
	}
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if s, ok := NormalizeScalar(at(i)); ok {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, ", "), true
}

// NormalizeDate rewrites a day.month.year date to YYYY-MM-DD. Any other input
// is returned unchanged.
func NormalizeDate(s string) string {
	t, err := time.Parse(dottedDate, s)
	if err != nil {
		return s
	}
	return t.Format(time.DateOnly)
}

// ConstrainEnum returns the allowed member equal to value after NFC
// normalization and trimming, or fallback.
func ConstrainEnum(value string, allowed []string, fallback string) string {
	v := norm.NFC.String(strings.TrimSpace(value))
	for _, a := range allowed {
		if v == norm.NFC.String(a) {
			return a
		}
	}
	return fallback
}

// NormalizeValue is NormalizeScalar followed by NormalizeDate. It returns nil
// for null values.
func NormalizeValue(v any) *string {
	s, ok := NormalizeScalar(v)
	if !ok {
		return nil
	}
	s = NormalizeDate(s)
	return &s
}
