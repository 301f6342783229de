package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrUnsupportedValue is returned when a property value falls outside the
// three supported kinds. The whole event carrying it is rejected; values are
// never silently dropped.
var ErrUnsupportedValue = errors.New("unsupported property value kind")

// Kind identifies which typed property table a value belongs to.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a tagged union over the three property kinds. The zero value is
// the empty string.
type Value struct {
	kind    Kind
	str     string
	integer int64
	boolean bool
}

func String(v string) Value {
	return Value{kind: KindString, str: v}
}

func Integer(v int64) Value {
	return Value{kind: KindInteger, integer: v}
}

func Boolean(v bool) Value {
	return Value{kind: KindBoolean, boolean: v}
}

func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload. Only meaningful when Kind is KindString.
func (v Value) Str() string { return v.str }

// Int returns the integer payload. Only meaningful when Kind is KindInteger.
func (v Value) Int() int64 { return v.integer }

// Bool returns the boolean payload. Only meaningful when Kind is KindBoolean.
func (v Value) Bool() bool { return v.boolean }

func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.integer, 10)
	case KindBoolean:
		return strconv.FormatBool(v.boolean)
	default:
		return v.str
	}
}

// UnmarshalJSON decodes a JSON scalar into the matching kind. JSON numbers
// must be integral; null, fractional numbers, arrays, and objects fail with
// ErrUnsupportedValue.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty value", ErrUnsupportedValue)
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Boolean(b)
		return nil
	case 'n':
		return fmt.Errorf("%w: null", ErrUnsupportedValue)
	case '[', '{':
		return fmt.Errorf("%w: %c...", ErrUnsupportedValue, data[0])
	default:
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUnsupportedValue, data)
		}
		*v = Integer(n)
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInteger:
		return json.Marshal(v.integer)
	case KindBoolean:
		return json.Marshal(v.boolean)
	default:
		return json.Marshal(v.str)
	}
}
