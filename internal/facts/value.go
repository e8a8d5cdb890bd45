package facts

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind identifies the type carried by a [Value].
type Kind uint8

const (
	// KindIRI is a compact IRI such as "devices:core-1".
	KindIRI Kind = iota + 1
	KindString
	KindInt
	KindFloat
	KindBool
	// KindDateTime values are kept as RFC 3339 text in UTC.
	KindDateTime
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDateTime:
		return "dateTime"
	default:
		return "unknown"
	}
}

// Value is the typed object of a fact, and the value bound to a variable in a
// query result row.
//
// Value is comparable with ==; two values are equal when they have the same
// kind and the same payload.
type Value struct {
	kind Kind
	text string
	num  float64
	i    int64
	b    bool
}

// IRI returns an IRI value.
func IRI(s string) Value { return Value{kind: KindIRI, text: s} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, num: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// DateTime returns a dateTime value truncated to the second.
func DateTime(t time.Time) Value {
	return Value{kind: KindDateTime, text: t.UTC().Truncate(time.Second).Format(time.RFC3339)}
}

// Kind returns the kind of v. The zero Value has kind 0.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether v is the zero Value.
func (v Value) IsZero() bool { return v.kind == 0 }

// Text returns the payload of IRI, string and dateTime values.
func (v Value) Text() string { return v.text }

// Native converts v into the plain Go value used by query filter expressions.
func (v Value) Native() any {
	switch v.kind {
	case KindIRI, KindString, KindDateTime:
		return v.text
	case KindInt:
		return v.i
	case KindFloat:
		return v.num
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// Number returns the numeric payload of int and float values.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.num, true
	default:
		return 0, false
	}
}

// String renders v for logs.
func (v Value) String() string {
	switch v.kind {
	case KindIRI:
		return v.text
	case KindString:
		return strconv.Quote(v.text)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDateTime:
		return v.text + "^^dateTime"
	default:
		return "<nil>"
	}
}

// MarshalJSON encodes IRIs, strings and dateTimes as JSON strings, numbers as
// JSON numbers and bools as JSON bools.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindIRI, KindString, KindDateTime:
		return json.Marshal(v.text)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case 0:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("facts: cannot marshal value of kind %d", v.kind)
	}
}

// FromNative converts a decoded YAML or JSON scalar into a Value. Strings of
// the form "<iri>" become IRIs. NaN and infinite floats are rejected.
func FromNative(x any) (Value, error) {
	switch t := x.(type) {
	case string:
		if len(t) > 1 && t[0] == '<' && t[len(t)-1] == '>' {
			return IRI(t[1 : len(t)-1]), nil
		}
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return Value{}, fmt.Errorf("non-finite number %v", t)
		}
		return Float(t), nil
	case time.Time:
		return DateTime(t), nil
	default:
		return Value{}, fmt.Errorf("unsupported value %v of type %T", x, x)
	}
}
