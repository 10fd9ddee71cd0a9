package story

import (
	"strconv"
	"strings"
	"time"
)

type ScalarKind int

const (
	ScalarNull ScalarKind = iota
	ScalarString
	ScalarNumber
	ScalarBool
	ScalarDate
)

// Scalar is a single primitive attribute value. Only the field selected by
// Kind is meaningful.
type Scalar struct {
	Kind ScalarKind
	Str  string
	Num  float64
	Bool bool
	Time time.Time
}

func Null() Scalar { return Scalar{} }

func String(s string) Scalar { return Scalar{Kind: ScalarString, Str: s} }

func Number(n float64) Scalar { return Scalar{Kind: ScalarNumber, Num: n} }

func Bool(b bool) Scalar { return Scalar{Kind: ScalarBool, Bool: b} }

func Date(t time.Time) Scalar { return Scalar{Kind: ScalarDate, Time: t} }

func (s Scalar) IsBlank() bool {
	switch s.Kind {
	case ScalarNull:
		return true
	case ScalarString:
		return strings.TrimSpace(s.Str) == ""
	}
	return false
}

func (s Scalar) Equal(other Scalar) bool {
	if s.Kind != other.Kind {
		return false
	}
	switch s.Kind {
	case ScalarString:
		return s.Str == other.Str
	case ScalarNumber:
		return s.Num == other.Num
	case ScalarBool:
		return s.Bool == other.Bool
	case ScalarDate:
		return s.Time.Equal(other.Time)
	}
	return true
}

func (s Scalar) String() string {
	switch s.Kind {
	case ScalarString:
		return s.Str
	case ScalarNumber:
		return strconv.FormatFloat(s.Num, 'f', -1, 64)
	case ScalarBool:
		return strconv.FormatBool(s.Bool)
	case ScalarDate:
		return s.Time.Format(time.RFC3339)
	}
	return ""
}

type Shape int

const (
	ShapeScalar Shape = iota
	ShapeScalarList
	ShapeRelationList
	ShapeEntityRef
	ShapeEntityRefList
)

var shapeNames = [...]string{
	ShapeScalar:        "scalar",
	ShapeScalarList:    "scalar_list",
	ShapeRelationList:  "relation_list",
	ShapeEntityRef:     "entity_ref",
	ShapeEntityRefList: "entity_ref_list",
}

func (s Shape) String() string {
	if s < ShapeScalar || s > ShapeEntityRefList {
		return "unknown"
	}
	return shapeNames[s]
}

func ParseShape(name string) (Shape, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for s, n := range shapeNames {
		if n == key {
			return Shape(s), true
		}
	}
	return 0, false
}

type Relation struct {
	Character Handle
	Weight    float64
}

// Value is one attribute of an entity. Shape selects which of the remaining
// fields is in use.
type Value struct {
	Shape     Shape
	Scalar    Scalar
	Scalars   []Scalar
	Relations []Relation
	Ref       Handle
	Refs      []Handle
}

func ScalarValue(s Scalar) *Value {
	return &Value{Shape: ShapeScalar, Scalar: s, Ref: NoHandle}
}

func ScalarListValue(items ...Scalar) *Value {
	return &Value{Shape: ShapeScalarList, Scalars: append([]Scalar{}, items...), Ref: NoHandle}
}

func RelationListValue(rels ...Relation) *Value {
	return &Value{Shape: ShapeRelationList, Relations: append([]Relation{}, rels...), Ref: NoHandle}
}

func RefValue(h Handle) *Value {
	return &Value{Shape: ShapeEntityRef, Ref: h}
}

func RefListValue(hs ...Handle) *Value {
	return &Value{Shape: ShapeEntityRefList, Refs: append([]Handle{}, hs...), Ref: NoHandle}
}

func EmptyValue(shape Shape) *Value {
	switch shape {
	case ShapeScalarList:
		return ScalarListValue()
	case ShapeRelationList:
		return RelationListValue()
	case ShapeEntityRef:
		return RefValue(NoHandle)
	case ShapeEntityRefList:
		return RefListValue()
	}
	return ScalarValue(Null())
}

// Handles returns every entity referenced by v, in stored order.
func (v *Value) Handles() []Handle {
	if v == nil {
		return nil
	}
	switch v.Shape {
	case ShapeEntityRef:
		if v.Ref == NoHandle {
			return nil
		}
		return []Handle{v.Ref}
	case ShapeEntityRefList:
		return append([]Handle{}, v.Refs...)
	case ShapeRelationList:
		out := make([]Handle, 0, len(v.Relations))
		for _, rel := range v.Relations {
			out = append(out, rel.Character)
		}
		return out
	}
	return nil
}

func (v *Value) IsBlank() bool {
	if v == nil {
		return true
	}
	switch v.Shape {
	case ShapeScalar:
		return v.Scalar.IsBlank()
	case ShapeScalarList:
		return len(v.Scalars) == 0
	case ShapeRelationList:
		return len(v.Relations) == 0
	case ShapeEntityRef:
		return v.Ref == NoHandle
	case ShapeEntityRefList:
		return len(v.Refs) == 0
	}
	return true
}

func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	out := *v
	out.Scalars = append([]Scalar(nil), v.Scalars...)
	out.Relations = append([]Relation(nil), v.Relations...)
	out.Refs = append([]Handle(nil), v.Refs...)
	return &out
}

func (v *Value) containsScalar(s Scalar) bool {
	for _, existing := range v.Scalars {
		if existing.Equal(s) {
			return true
		}
	}
	return false
}

func (v *Value) relationIndex(h Handle) int {
	for i, rel := range v.Relations {
		if rel.Character == h {
			return i
		}
	}
	return -1
}

func (v *Value) refIndex(h Handle) int {
	for i, ref := range v.Refs {
		if ref == h {
			return i
		}
	}
	return -1
}
