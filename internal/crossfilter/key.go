package crossfilter

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type partKind uint8

const (
	numberPart partKind = iota
	stringPart
)

type part struct {
	kind partKind
	num  float64
	str  string
}

// Key is the value a Dimension extracts from a record. A key holds one or more
// ordered components; multi-component keys (tuples) compare lexicographically.
// Keys built from the same components are Equal no matter how they were built.
type Key struct {
	parts []part
	id    string
}

// String builds a single-component string key.
func String(s string) Key {
	return newKey([]part{{kind: stringPart, str: s}})
}

// Number builds a single-component numeric key. -0 is stored as 0 so that
// Equal agrees with Compare.
func Number(f float64) Key {
	if f == 0 {
		f = 0
	}
	return newKey([]part{{kind: numberPart, num: f}})
}

// Tuple concatenates the components of keys into one ordered key,
// e.g. Tuple(String(branch), String(program)).
func Tuple(keys ...Key) Key {
	n := 0
	for _, k := range keys {
		n += len(k.parts)
	}
	parts := make([]part, 0, n)
	for _, k := range keys {
		parts = append(parts, k.parts...)
	}
	return newKey(parts)
}

func newKey(parts []part) Key {
	var b strings.Builder
	for _, p := range parts {
		switch p.kind {
		case numberPart:
			b.WriteByte('n')
			b.WriteString(strconv.FormatFloat(p.num, 'g', -1, 64))
			b.WriteByte(';')
		default:
			b.WriteByte('s')
			b.WriteString(strconv.Itoa(len(p.str)))
			b.WriteByte(':')
			b.WriteString(p.str)
		}
	}
	return Key{parts: parts, id: b.String()}
}

// Len returns the number of components.
func (k Key) Len() int { return len(k.parts) }

// IsZero reports whether the key has no components.
func (k Key) IsZero() bool { return len(k.parts) == 0 }

// At returns component i as a string or float64.
func (k Key) At(i int) any {
	p := k.parts[i]
	if p.kind == numberPart {
		return p.num
	}
	return p.str
}

// Components returns every component as string or float64.
func (k Key) Components() []any {
	out := make([]any, len(k.parts))
	for i := range k.parts {
		out[i] = k.At(i)
	}
	return out
}

// Equal reports structural equality.
func (k Key) Equal(other Key) bool { return k.id == other.id }

// Compare orders keys lexicographically by component. Numbers sort before
// strings at the same position; a strict prefix sorts first.
func (k Key) Compare(other Key) int {
	n := min(len(k.parts), len(other.parts))
	for i := 0; i < n; i++ {
		if c := comparePart(k.parts[i], other.parts[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(k.parts), len(other.parts))
}

func comparePart(a, b part) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	if a.kind == numberPart {
		return cmp.Compare(a.num, b.num)
	}
	return strings.Compare(a.str, b.str)
}

// String renders the key for display: components joined by ", ".
func (k Key) String() string {
	out := make([]string, len(k.parts))
	for i, p := range k.parts {
		if p.kind == numberPart {
			out[i] = strconv.FormatFloat(p.num, 'f', -1, 64)
		} else {
			out[i] = p.str
		}
	}
	return strings.Join(out, ", ")
}

// MarshalJSON encodes a single-component key as a scalar and a tuple as an array.
func (k Key) MarshalJSON() ([]byte, error) {
	if len(k.parts) == 1 {
		return json.Marshal(k.At(0))
	}
	return json.Marshal(k.Components())
}

// UnmarshalJSON accepts a string, a number, or an array of strings and numbers.
func (k *Key) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	key, err := keyFromValue(raw)
	if err != nil {
		return err
	}
	*k = key
	return nil
}

func keyFromValue(v any) (Key, error) {
	switch t := v.(type) {
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case []any:
		if len(t) == 0 {
			return Key{}, errors.New("empty key tuple")
		}
		keys := make([]Key, 0, len(t))
		for _, e := range t {
			sub, err := keyFromValue(e)
			if err != nil {
				return Key{}, err
			}
			if sub.Len() != 1 {
				return Key{}, errors.New("nested key tuples are not supported")
			}
			keys = append(keys, sub)
		}
		return Tuple(keys...), nil
	default:
		return Key{}, fmt.Errorf("unsupported key component %T", v)
	}
}
