package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"actionplan/internal/audit/models"
	"actionplan/internal/workbook"
)

func TestNormalizeScalar(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   string
		wantOK bool
	}{
		{"nil", nil, "", false},
		{"null scalar", workbook.Scalar{}, "", false},
		{"blank", "", "", false},
		{"whitespace", " \t ", "", false},
		{"trims", "  Acme  ", "Acme", true},
		{"integer float", 5.0, "5", true},
		{"float", 3.25, "3.25", true},
		{"int", 42, "42", true},
		{"bool", true, "true", true},
		{"date", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), "2024-03-05", true},
		{"date time", time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC), "2024-03-05T14:30:00", true},
		{"number scalar", workbook.NumberValue(7), "7", true},
		{"string scalar", workbook.StringValue(" R1 "), "R1", true},
		{"single element tuple", []any{" x "}, "x", true},
		{"single element strings", []string{"y"}, "y", true},
		{"single blank element", []any{" "}, "", false},
		{"single scalar element", []workbook.Scalar{workbook.BoolValue(false)}, "false", true},
		{"longer tuple", []any{"a", nil, 2}, "a, 2", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeScalar(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	assert.Equal(t, "2024-03-05", NormalizeDate("05.03.2024"))
	assert.Equal(t, "2024-03-05", NormalizeDate("5.3.2024"))
	assert.Equal(t, "31.02.2024", NormalizeDate("31.02.2024"), "impossible dates pass through")
	assert.Equal(t, "2024-03-05", NormalizeDate("2024-03-05"))
	assert.Equal(t, "n/a", NormalizeDate("n/a"))
	assert.Equal(t, "", NormalizeDate(""))
}

func TestConstrainEnum(t *testing.T) {
	allowed := models.StatusValues()
	fallback := string(models.StatusInProgress)

	t.Run("members are returned", func(t *testing.T) {
		for _, v := range allowed {
			assert.Equal(t, v, ConstrainEnum(v, allowed, fallback))
		}
	})

	t.Run("decomposed accents match the canonical member", func(t *testing.T) {
		assert.Equal(t, "Validée", ConstrainEnum("Valide\u0301e", allowed, fallback))
	})

	t.Run("unknown and empty values fall back", func(t *testing.T) {
		assert.Equal(t, fallback, ConstrainEnum("Closed", allowed, fallback))
		assert.Equal(t, fallback, ConstrainEnum("", allowed, fallback))
	})

	t.Run("idempotent", func(t *testing.T) {
		for _, v := range []string{"Soumise", "Closed", "", "Valide\u0301e"} {
			once := ConstrainEnum(v, allowed, fallback)
			assert.Equal(t, once, ConstrainEnum(once, allowed, fallback))
		}
	})
}

func TestNormalizeValue(t *testing.T) {
	require.Nil(t, NormalizeValue(nil))
	require.Nil(t, NormalizeValue("   "))

	got := NormalizeValue(" 05.03.2024 ")
	require.NotNil(t, got)
	assert.Equal(t, "2024-03-05", *got)

	got = NormalizeValue(workbook.StringValue("IFS Food 8"))
	require.NotNil(t, got)
	assert.Equal(t, "IFS Food 8", *got)
}
