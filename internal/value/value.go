// Package value models arbitrarily shaped JSON-like data (contract view
// values, registry choice context) as a tagged union with safe lookups.
//
// The zero Value means "absent". Lookups on the wrong kind, missing keys and
// out-of-range indexes return an absent Value and false instead of panicking.
package value

import (
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type Kind int

const (
	KindAbsent Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "absent"
	}
}

// Value wraps a structpb.Value. Values are immutable once built.
type Value struct {
	pb *structpb.Value
}

// Parse decodes any JSON document into a Value.
func Parse(data []byte) (Value, error) {
	pb := &structpb.Value{}
	if err := protojson.Unmarshal(data, pb); err != nil {
		return Value{}, err
	}
	return Value{pb: pb}, nil
}

// From converts plain Go data (maps, slices, strings, numbers, bools, nil)
// into a Value.
func From(v any) (Value, error) {
	pb, err := structpb.NewValue(v)
	if err != nil {
		return Value{}, err
	}
	return Value{pb: pb}, nil
}

// MustFrom is From for literals known to be convertible.
func MustFrom(v any) Value {
	out, err := From(v)
	if err != nil {
		panic(err)
	}
	return out
}

func Null() Value {
	return Value{pb: structpb.NewNullValue()}
}

func (v Value) Kind() Kind {
	if v.pb == nil {
		return KindAbsent
	}
	switch v.pb.GetKind().(type) {
	case *structpb.Value_NullValue:
		return KindNull
	case *structpb.Value_BoolValue:
		return KindBool
	case *structpb.Value_NumberValue:
		return KindNumber
	case *structpb.Value_StringValue:
		return KindString
	case *structpb.Value_StructValue:
		return KindMap
	case *structpb.Value_ListValue:
		return KindList
	}
	return KindAbsent
}

func (v Value) IsAbsent() bool { return v.Kind() == KindAbsent }

// IsNull reports an explicit JSON null. An absent value is not null.
func (v Value) IsNull() bool { return v.Kind() == KindNull }

// Get returns the field named key of a map value.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind() != KindMap {
		return Value{}, false
	}
	field, ok := v.pb.GetStructValue().GetFields()[key]
	if !ok || field == nil {
		return Value{}, false
	}
	return Value{pb: field}, true
}

// Lookup follows a chain of map keys, e.g. Lookup("instrumentId", "id").
func (v Value) Lookup(path ...string) (Value, bool) {
	cur := v
	for _, key := range path {
		next, ok := cur.Get(key)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, !cur.IsAbsent()
}

// Index returns element i of a list value.
func (v Value) Index(i int) (Value, bool) {
	if v.Kind() != KindList {
		return Value{}, false
	}
	items := v.pb.GetListValue().GetValues()
	if i < 0 || i >= len(items) {
		return Value{}, false
	}
	return Value{pb: items[i]}, true
}

// Len is the number of entries of a map or list value, zero otherwise.
func (v Value) Len() int {
	switch v.Kind() {
	case KindMap:
		return len(v.pb.GetStructValue().GetFields())
	case KindList:
		return len(v.pb.GetListValue().GetValues())
	}
	return 0
}

func (v Value) AsString() (string, bool) {
	if v.Kind() != KindString {
		return "", false
	}
	return v.pb.GetStringValue(), true
}

func (v Value) AsBool() (bool, bool) {
	if v.Kind() != KindBool {
		return false, false
	}
	return v.pb.GetBoolValue(), true
}

func (v Value) AsNumber() (float64, bool) {
	if v.Kind() != KindNumber {
		return 0, false
	}
	return v.pb.GetNumberValue(), true
}

// Interface returns the plain Go representation (nil for absent or null).
func (v Value) Interface() any {
	if v.pb == nil {
		return nil
	}
	return v.pb.AsInterface()
}

func (v Value) Equal(other Value) bool {
	if v.pb == nil || other.pb == nil {
		return v.pb == nil && other.pb == nil
	}
	return proto.Equal(v.pb, other.pb)
}

// MarshalJSON encodes an absent value as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.pb == nil {
		return []byte("null"), nil
	}
	return protojson.Marshal(v.pb)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
