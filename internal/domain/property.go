package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"artgraph-backend/internal/errors"
)

const (
	// MaxProperties bounds the property count on any entity.
	MaxProperties = 64
	// MaxStringValueLen bounds individual string property values.
	MaxStringValueLen = 4096
)

// PropertyKind tags the concrete type held by a PropertyValue.
type PropertyKind string

const (
	KindString   PropertyKind = "string"
	KindInt      PropertyKind = "int"
	KindFloat    PropertyKind = "float"
	KindBool     PropertyKind = "bool"
	KindTime     PropertyKind = "time"
	KindPosition PropertyKind = "position"
)

// Position is a 2-D layout coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PropertyValue is a tagged union over the property types the graph
// supports. The zero value is invalid; values are built through the
// typed constructors so a held value always matches its kind.
type PropertyValue struct {
	kind PropertyKind
	str  string
	num  int64
	flt  float64
	b    bool
	t    time.Time
	pos  Position
}

func StringValue(v string) PropertyValue { return PropertyValue{kind: KindString, str: v} }
func IntValue(v int64) PropertyValue     { return PropertyValue{kind: KindInt, num: v} }
func FloatValue(v float64) PropertyValue { return PropertyValue{kind: KindFloat, flt: v} }
func BoolValue(v bool) PropertyValue     { return PropertyValue{kind: KindBool, b: v} }
func TimeValue(v time.Time) PropertyValue {
	return PropertyValue{kind: KindTime, t: v.UTC()}
}
func PositionValue(v Position) PropertyValue { return PropertyValue{kind: KindPosition, pos: v} }

// Kind returns the union tag.
func (v PropertyValue) Kind() PropertyKind { return v.kind }

func (v PropertyValue) AsString() (string, bool) { return v.str, v.kind == KindString }
func (v PropertyValue) AsInt() (int64, bool)     { return v.num, v.kind == KindInt }
func (v PropertyValue) AsFloat() (float64, bool) { return v.flt, v.kind == KindFloat }
func (v PropertyValue) AsBool() (bool, bool)     { return v.b, v.kind == KindBool }
func (v PropertyValue) AsTime() (time.Time, bool) {
	return v.t, v.kind == KindTime
}
func (v PropertyValue) AsPosition() (Position, bool) {
	return v.pos, v.kind == KindPosition
}

// Float widens int and float values to float64, for numeric properties
// like strength and confidence that may arrive as either.
func (v PropertyValue) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.flt, true
	case KindInt:
		return float64(v.num), true
	}
	return 0, false
}

// Native returns the value as the plain Go type used for persistence
// parameters. Positions flatten to a two-element float slice and times to
// RFC 3339 strings so every result is a legal graph database property.
func (v PropertyValue) Native() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindFloat:
		return v.flt
	case KindBool:
		return v.b
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	case KindPosition:
		return []float64{v.pos.X, v.pos.Y}
	}
	return nil
}

// FromNative converts a value read back from the store into a typed
// property. Unrecognized shapes are rejected.
func FromNative(raw any) (PropertyValue, error) {
	switch val := raw.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339Nano, val); err == nil {
			return TimeValue(t), nil
		}
		return StringValue(val), nil
	case int64:
		return IntValue(val), nil
	case int:
		return IntValue(int64(val)), nil
	case float64:
		return FloatValue(val), nil
	case bool:
		return BoolValue(val), nil
	case []float64:
		if len(val) == 2 {
			return PositionValue(Position{X: val[0], Y: val[1]}), nil
		}
	case []any:
		if len(val) == 2 {
			x, xok := val[0].(float64)
			y, yok := val[1].(float64)
			if xok && yok {
				return PositionValue(Position{X: x, Y: y}), nil
			}
		}
	case time.Time:
		return TimeValue(val), nil
	}
	return PropertyValue{}, errors.Validation("UNSUPPORTED_PROPERTY_TYPE",
		fmt.Sprintf("unsupported property value of type %T", raw))
}

// validate enforces per-value bounds.
func (v PropertyValue) validate() error {
	switch v.kind {
	case "":
		return errors.Validation("EMPTY_PROPERTY_VALUE", "property value is unset")
	case KindString:
		if len(v.str) > MaxStringValueLen {
			return errors.Validation("PROPERTY_VALUE_TOO_LONG",
				fmt.Sprintf("string property exceeds %d bytes", MaxStringValueLen))
		}
	}
	return nil
}

// propertyJSON is the wire form of a PropertyValue.
type propertyJSON struct {
	Kind  PropertyKind    `json:"kind"`
	Value json.RawMessage `json:"value"`
}

func (v PropertyValue) MarshalJSON() ([]byte, error) {
	var inner any
	switch v.kind {
	case KindString:
		inner = v.str
	case KindInt:
		inner = v.num
	case KindFloat:
		inner = v.flt
	case KindBool:
		inner = v.b
	case KindTime:
		inner = v.t.Format(time.RFC3339Nano)
	case KindPosition:
		inner = v.pos
	default:
		return nil, fmt.Errorf("cannot marshal property of kind %q", v.kind)
	}
	raw, err := json.Marshal(inner)
	if err != nil {
		return nil, err
	}
	return json.Marshal(propertyJSON{Kind: v.kind, Value: raw})
}

func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	var wire propertyJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Kind {
	case KindString:
		var s string
		if err := json.Unmarshal(wire.Value, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case KindInt:
		var n int64
		if err := json.Unmarshal(wire.Value, &n); err != nil {
			return err
		}
		*v = IntValue(n)
	case KindFloat:
		var f float64
		if err := json.Unmarshal(wire.Value, &f); err != nil {
			return err
		}
		*v = FloatValue(f)
	case KindBool:
		var b bool
		if err := json.Unmarshal(wire.Value, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case KindTime:
		var s string
		if err := json.Unmarshal(wire.Value, &s); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		*v = TimeValue(t)
	case KindPosition:
		var p Position
		if err := json.Unmarshal(wire.Value, &p); err != nil {
			return err
		}
		*v = PositionValue(p)
	default:
		return fmt.Errorf("cannot unmarshal property of kind %q", wire.Kind)
	}
	return nil
}

// Properties is the typed property bag carried by nodes and relationships.
type Properties map[string]PropertyValue

// Validate enforces the size bound and per-value constraints.
func (p Properties) Validate() error {
	if len(p) > MaxProperties {
		return errors.Validation("TOO_MANY_PROPERTIES",
			fmt.Sprintf("property count %d exceeds limit %d", len(p), MaxProperties))
	}
	for key, value := range p {
		if key == "" {
			return errors.Validation("EMPTY_PROPERTY_KEY", "property keys must be non-empty")
		}
		if err := value.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a shallow copy; values are immutable so sharing them is
// safe.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Native converts the bag to plain Go values for persistence parameters.
func (p Properties) Native() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v.Native()
	}
	return out
}
