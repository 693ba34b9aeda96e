// Package ax extracts text from the platform accessibility tree.
//
// The accessibility API is fundamentally dynamic: attribute names are
// strings and values are typed at runtime. A small typed Variant hides
// that behind a closed set of kinds, and a helper subprocess owns the
// actual platform calls so the daemon never blocks inside them.
package ax

import (
	"encoding/json"
	"fmt"
)

// VariantKind enumerates the dynamic attribute value types.
type VariantKind int

// Variant kinds.
const (
	KindNull VariantKind = iota
	KindString
	KindNumber
	KindBool
	KindElement
	KindArray
)

// Variant is a dynamically typed accessibility attribute value.
// Walkers and harvesters operate only on this, never on raw platform
// types.
type Variant struct {
	Kind VariantKind
	Str  string
	Num  float64
	Bool bool
	// ElemID is a helper-side element handle.
	ElemID string
	Items  []Variant
}

// String returns the string value, or "" for other kinds.
func (v Variant) String() string {
	if v.Kind == KindString {
		return v.Str
	}
	return ""
}

// IsNull reports an absent attribute.
func (v Variant) IsNull() bool {
	return v.Kind == KindNull
}

// StringVariant builds a string variant.
func StringVariant(s string) Variant {
	return Variant{Kind: KindString, Str: s}
}

// BoolVariant builds a bool variant.
func BoolVariant(b bool) Variant {
	return Variant{Kind: KindBool, Bool: b}
}

// wireVariant is the helper protocol's representation.
type wireVariant struct {
	Type    string        `json:"type"`
	String  string        `json:"string,omitempty"`
	Number  float64       `json:"number,omitempty"`
	Bool    bool          `json:"bool,omitempty"`
	Element string        `json:"element,omitempty"`
	Items   []wireVariant `json:"items,omitempty"`
}

func (w wireVariant) toVariant() (Variant, error) {
	switch w.Type {
	case "", "null":
		return Variant{Kind: KindNull}, nil
	case "string":
		return Variant{Kind: KindString, Str: w.String}, nil
	case "number":
		return Variant{Kind: KindNumber, Num: w.Number}, nil
	case "bool":
		return Variant{Kind: KindBool, Bool: w.Bool}, nil
	case "element":
		return Variant{Kind: KindElement, ElemID: w.Element}, nil
	case "array":
		items := make([]Variant, 0, len(w.Items))
		for _, it := range w.Items {
			v, err := it.toVariant()
			if err != nil {
				return Variant{}, err
			}
			items = append(items, v)
		}
		return Variant{Kind: KindArray, Items: items}, nil
	default:
		return Variant{}, fmt.Errorf("unknown variant type %q", w.Type)
	}
}

func (v Variant) toWire() wireVariant {
	switch v.Kind {
	case KindString:
		return wireVariant{Type: "string", String: v.Str}
	case KindNumber:
		return wireVariant{Type: "number", Number: v.Num}
	case KindBool:
		return wireVariant{Type: "bool", Bool: v.Bool}
	case KindElement:
		return wireVariant{Type: "element", Element: v.ElemID}
	case KindArray:
		items := make([]wireVariant, len(v.Items))
		for i, it := range v.Items {
			items[i] = it.toWire()
		}
		return wireVariant{Type: "array", Items: items}
	default:
		return wireVariant{Type: "null"}
	}
}

// UnmarshalJSON decodes the wire representation.
func (v *Variant) UnmarshalJSON(data []byte) error {
	var w wireVariant
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed, err := w.toVariant()
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON encodes the wire representation.
func (v Variant) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toWire())
}
