// Package units does the small amount of unit arithmetic needed to display
// sample values.
//
// A [Value] is a number with a list of canonical units. Multiplying by a
// non-canonical unit (feet, minute) or by a modifier (kilo, milli, ...)
// rescales the number, so values are always stored in canonical form.
package units

import (
	"fmt"
	"math"
	"strings"
)

// Unit is a canonical unit, a unit convertible to one, or a decimal modifier.
type Unit int

const (
	// length
	Meter Unit = iota + 1
	Feet

	// time
	Second
	Minute

	// information
	Bit
	Byte

	// modifiers
	Micro
	Milli
	Kilo
	Mega
	Giga
)

var unitNames = map[Unit]string{
	Meter:  "m",
	Feet:   "ft",
	Second: "s",
	Minute: "min",
	Bit:    "b",
	Byte:   "B",
	Micro:  "µ",
	Milli:  "m",
	Kilo:   "k",
	Mega:   "M",
	Giga:   "G",
}

func (u Unit) String() string {
	if s, ok := unitNames[u]; ok {
		return s
	}
	return fmt.Sprintf("Unit(%d)", int(u))
}

// IsModifier reports whether u is a decimal prefix rather than a unit.
func (u Unit) IsModifier() bool {
	_, ok := modifiers[u]
	return ok
}

var modifiers = map[Unit]float64{
	Micro: 1e-6,
	Milli: 1e-3,
	Kilo:  1e3,
	Mega:  1e6,
	Giga:  1e9,
}

// Value is a number in canonical units.
type Value struct {
	value float64
	numer []Unit
}

// New returns a dimensionless value.
func New(v float64) Value {
	return Value{value: v}
}

// Mul multiplies v by u, converting to canonical units.
func (v Value) Mul(u Unit) Value {
	out := Value{value: v.value, numer: v.numer}
	switch u {
	case Meter, Second, Bit, Byte:
		out.numer = append(append([]Unit(nil), v.numer...), u)
	case Feet:
		out.value *= 0.3048
		out.numer = append(append([]Unit(nil), v.numer...), Meter)
	case Minute:
		out.value *= 60
		out.numer = append(append([]Unit(nil), v.numer...), Second)
	default:
		if f, ok := modifiers[u]; ok {
			out.value *= f
		}
	}
	return out
}

// Get returns the number in canonical units.
func (v Value) Get() float64 { return v.value }

// Units returns the canonical units of v.
func (v Value) Units() []Unit {
	return append([]Unit(nil), v.numer...)
}

// In returns the number scaled by modifier, e.g. New(5000).In(Kilo) is 5.
// A unit that is not a modifier leaves the number unchanged.
func (v Value) In(modifier Unit) float64 {
	if f, ok := modifiers[modifier]; ok {
		return v.value / f
	}
	return v.value
}

func (v Value) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%g", v.value)
	for _, u := range v.numer {
		b.WriteByte(' ')
		b.WriteString(u.String())
	}
	return b.String()
}

// Best returns the largest of kilo, mega and giga that keeps |x| at or above
// one once applied. The zero Unit means no prefix.
func Best(x float64) Unit {
	a := math.Abs(x)
	for _, u := range []Unit{Giga, Mega, Kilo} {
		if a >= modifiers[u] {
			return u
		}
	}
	return 0
}

// Symbol prefixes base with modifier, e.g. Symbol(Kilo, "bps") is "kbps".
// The zero Unit yields base unchanged.
func Symbol(modifier Unit, base string) string {
	if modifier == 0 {
		return base
	}
	return modifier.String() + base
}
