package workbook

import (
	"strconv"
	"time"
)

// Kind is the type of a cell value.
type Kind uint8

const (
	Null Kind = iota
	String
	Number
	Bool
	Date
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "bool"
	case Date:
		return "date"
	default:
		return "null"
	}
}

// Scalar is a typed cell value. The zero value is null.
type Scalar struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
	Time time.Time
}

func StringValue(s string) Scalar { return Scalar{Kind: String, Str: s} }

func NumberValue(f float64) Scalar { return Scalar{Kind: Number, Num: f} }

func BoolValue(b bool) Scalar { return Scalar{Kind: Bool, Bool: b} }

func DateValue(t time.Time) Scalar { return Scalar{Kind: Date, Time: t} }

func (s Scalar) IsNull() bool { return s.Kind == Null }

// Equal compares kind and canonical text.
func (s Scalar) Equal(o Scalar) bool { return s.Kind == o.Kind && s.String() == o.String() }

// String renders the canonical text form: integers without a trailing ".0",
// dates as ISO 8601 (date only when there is no time of day).
func (s Scalar) String() string {
	switch s.Kind {
	case String:
		return s.Str
	case Number:
		return strconv.FormatFloat(s.Num, 'f', -1, 64)
	case Bool:
		return strconv.FormatBool(s.Bool)
	case Date:
		if s.Time.Hour() == 0 && s.Time.Minute() == 0 && s.Time.Second() == 0 {
			return s.Time.Format(time.DateOnly)
		}
		return s.Time.Format("2006-01-02T15:04:05")
	default:
		return ""
	}
}

// Any returns the value as a plain Go value (nil for null).
func (s Scalar) Any() any {
	switch s.Kind {
	case String:
		return s.Str
	case Number:
		return s.Num
	case Bool:
		return s.Bool
	case Date:
		return s.Time
	default:
		return nil
	}
}
