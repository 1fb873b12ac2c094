package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind tags the value held by a Primitive.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindNumber
	KindText
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Primitive is a self-describing value used for call arguments and results.
// The zero value is Empty.
type Primitive struct {
	kind Kind
	num  float64
	text string
	b    bool
}

// Number wraps a float64.
func Number(v float64) Primitive { return Primitive{kind: KindNumber, num: v} }

// Text wraps a string.
func Text(v string) Primitive { return Primitive{kind: KindText, text: v} }

// Bool wraps a boolean.
func Bool(v bool) Primitive { return Primitive{kind: KindBool, b: v} }

// Empty is the absent value.
func Empty() Primitive { return Primitive{} }

// Kind reports which variant p holds.
func (p Primitive) Kind() Kind { return p.kind }

// IsEmpty reports whether p is the absent value.
func (p Primitive) IsEmpty() bool { return p.kind == KindEmpty }

// AsNumber returns the number held by p.
func (p Primitive) AsNumber() (float64, bool) {
	return p.num, p.kind == KindNumber
}

// AsText returns the string held by p.
func (p Primitive) AsText() (string, bool) {
	return p.text, p.kind == KindText
}

// AsBool returns the boolean held by p.
func (p Primitive) AsBool() (bool, bool) {
	return p.b, p.kind == KindBool
}

func (p Primitive) String() string {
	switch p.kind {
	case KindNumber:
		return strconv.FormatFloat(p.num, 'g', -1, 64)
	case KindText:
		return strconv.Quote(p.text)
	case KindBool:
		return strconv.FormatBool(p.b)
	}
	return "empty"
}

// MarshalJSON encodes Empty as null and every other kind as its JSON scalar.
func (p Primitive) MarshalJSON() ([]byte, error) {
	switch p.kind {
	case KindNumber:
		if math.IsNaN(p.num) || math.IsInf(p.num, 0) {
			return nil, fmt.Errorf("primitive: number %v is not representable in JSON", p.num)
		}
		return json.Marshal(p.num)
	case KindText:
		return json.Marshal(p.text)
	case KindBool:
		return json.Marshal(p.b)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts null, numbers, strings and booleans.
func (p *Primitive) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*p = Empty()
	case float64:
		*p = Number(t)
	case string:
		*p = Text(t)
	case bool:
		*p = Bool(t)
	default:
		return fmt.Errorf("primitive: unsupported JSON value %s", data)
	}
	return nil
}

// Params is an ordered list of positional arguments or results.
type Params []Primitive

// Values builds Params from its arguments. The result is never nil, so an
// empty list encodes as [].
func Values(vs ...Primitive) Params { return append(make(Params, 0, len(vs)), vs...) }

// At returns argument i, or Empty when the list is shorter.
func (ps Params) At(i int) Primitive {
	if i < 0 || i >= len(ps) {
		return Empty()
	}
	return ps[i]
}

// NumberAt returns argument i when it is a Number.
func (ps Params) NumberAt(i int) (float64, bool) { return ps.At(i).AsNumber() }

// TextAt returns argument i when it is Text.
func (ps Params) TextAt(i int) (string, bool) { return ps.At(i).AsText() }

// OptionalUint maps nil to Empty and a value to a Number.
func OptionalUint(v *uint64) Primitive {
	if v == nil {
		return Empty()
	}
	return Number(float64(*v))
}

// OptionalText maps nil to Empty and a value to Text.
func OptionalText(v *string) Primitive {
	if v == nil {
		return Empty()
	}
	return Text(*v)
}

// OptionalNumber maps a (value, present) pair to a Number or Empty. NaN and
// infinities have no JSON form and map to Empty.
func OptionalNumber(v float64, ok bool) Primitive {
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return Empty()
	}
	return Number(v)
}

// ToUint64 converts a float the way a saturating cast does: NaN and negative
// values become 0, values beyond the range become math.MaxUint64.
func ToUint64(v float64) uint64 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxUint64:
		return math.MaxUint64
	}
	return uint64(v)
}
