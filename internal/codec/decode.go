package codec

import (
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"storygraph/internal/story"
)

var (
	ErrMalformed           = errors.New("malformed document")
	ErrReferenceResolution = errors.New("unresolved reference")
)

// ShapeHints reports the declared shape of a custom attribute. It lets the
// decoder type values the document cannot disambiguate, such as an empty
// list or a null reference.
type ShapeHints func(kind story.Kind, key string) (story.Shape, bool)

type Decoder struct {
	Hints ShapeHints
}

func DecodePlot(data []byte) (*story.Plot, error) {
	return Decoder{}.DecodePlot(data)
}

func DecodeEntity(data []byte) (*story.Registry, story.Handle, error) {
	return Decoder{}.DecodeEntity(data)
}

func (d Decoder) DecodePlot(data []byte) (*story.Plot, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("decoding plot: %w", ErrMalformed)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("decoding plot: root is not an object: %w", ErrMalformed)
	}

	st := newDecodeState(d.Hints)
	fields := objectFields(root)
	if id, ok := fields["$id"]; ok {
		st.ids[id.String()] = ref{kind: refPlot}
	}
	list, ok := fields["entities"]
	if !ok || !list.IsObject() {
		return nil, fmt.Errorf("decoding plot: missing entities: %w", ErrMalformed)
	}
	if err := st.define(objectFields(list)["$id"], ref{kind: refPlot}); err != nil {
		return nil, fmt.Errorf("decoding plot: %w", err)
	}

	var handles []story.Handle
	seen := make(map[story.Handle]struct{})
	err := st.eachListItem(list, func(item gjson.Result) error {
		h, err := st.entity(item)
		if err != nil {
			return err
		}
		if h == story.NoHandle {
			return fmt.Errorf("null plot entity: %w", ErrMalformed)
		}
		if _, dup := seen[h]; !dup {
			seen[h] = struct{}{}
			handles = append(handles, h)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decoding plot: %w", err)
	}

	clock := 0
	if c, ok := fields["clock"]; ok {
		if c.Type != gjson.Number {
			return nil, fmt.Errorf("decoding plot: clock is not a number: %w", ErrMalformed)
		}
		clock = int(c.Int())
	}
	return story.RestorePlot(st.reg, handles, clock), nil
}

func (d Decoder) DecodeEntity(data []byte) (*story.Registry, story.Handle, error) {
	if !gjson.ValidBytes(data) {
		return nil, story.NoHandle, fmt.Errorf("decoding entity: %w", ErrMalformed)
	}
	st := newDecodeState(d.Hints)
	h, err := st.entity(gjson.ParseBytes(data))
	if err != nil {
		return nil, story.NoHandle, fmt.Errorf("decoding entity: %w", err)
	}
	if h == story.NoHandle {
		return nil, story.NoHandle, fmt.Errorf("decoding entity: null root: %w", ErrMalformed)
	}
	return st.reg, h, nil
}

type refKind int

const (
	refPlot refKind = iota
	refEntity
	refAttributes
	refList
	refRelation
)

type ref struct {
	kind   refKind
	handle story.Handle
	value  *story.Value
}

type decodeState struct {
	reg   *story.Registry
	ids   map[string]ref
	hints ShapeHints
}

func newDecodeState(hints ShapeHints) *decodeState {
	return &decodeState{
		reg:   story.NewRegistry(),
		ids:   make(map[string]ref),
		hints: hints,
	}
}

func (st *decodeState) define(id gjson.Result, r ref) error {
	if !id.Exists() {
		return nil
	}
	key := id.String()
	if _, dup := st.ids[key]; dup {
		return fmt.Errorf("duplicate $id %q: %w", key, ErrMalformed)
	}
	st.ids[key] = r
	return nil
}

func (st *decodeState) resolve(id gjson.Result, want refKind) (ref, error) {
	r, ok := st.ids[id.String()]
	if !ok {
		return ref{}, fmt.Errorf("$ref %q: %w", id.String(), ErrReferenceResolution)
	}
	if r.kind != want {
		return ref{}, fmt.Errorf("$ref %q points at the wrong object: %w", id.String(), ErrReferenceResolution)
	}
	return r, nil
}

// entity decodes an entity body or a back-reference to one. JSON null
// yields NoHandle.
func (st *decodeState) entity(obj gjson.Result) (story.Handle, error) {
	if obj.Type == gjson.Null {
		return story.NoHandle, nil
	}
	if !obj.IsObject() {
		return story.NoHandle, fmt.Errorf("entity is not an object: %w", ErrMalformed)
	}
	fields := objectFields(obj)
	if id, ok := fields["$ref"]; ok {
		r, err := st.resolve(id, refEntity)
		if err != nil {
			return story.NoHandle, err
		}
		return r.handle, nil
	}

	kindField, ok := fields["kind"]
	if !ok || kindField.Type != gjson.Number {
		return story.NoHandle, fmt.Errorf("entity without numeric kind: %w", ErrMalformed)
	}
	kind := story.Kind(kindField.Int())
	if !kind.Valid() {
		return story.NoHandle, fmt.Errorf("entity kind %d: %w", kind, ErrMalformed)
	}

	e := &story.Entity{
		Kind:        kind,
		Name:        fields["name"].String(),
		Description: fields["description"].String(),
		Attributes:  story.NewAttributes(),
		Sequence:    story.Unplaced,
	}
	if seq, ok := fields["sequence"]; ok {
		if seq.Type != gjson.Number {
			return story.NoHandle, fmt.Errorf("entity %q sequence is not a number: %w", e.Name, ErrMalformed)
		}
		e.Sequence = int(seq.Int())
	}
	h := st.reg.Insert(e)
	if err := st.define(fields["$id"], ref{kind: refEntity, handle: h}); err != nil {
		return story.NoHandle, err
	}

	attrs, ok := fields["attributes"]
	if !ok || attrs.Type == gjson.Null {
		return h, nil
	}
	if !attrs.IsObject() {
		return story.NoHandle, fmt.Errorf("entity %q attributes: %w", e.Name, ErrMalformed)
	}
	if err := st.attributes(e, attrs); err != nil {
		return story.NoHandle, fmt.Errorf("entity %q: %w", e.Name, err)
	}
	return h, nil
}

func (st *decodeState) attributes(e *story.Entity, obj gjson.Result) error {
	var err error
	obj.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		switch name {
		case "$id":
			err = st.define(value, ref{kind: refAttributes})
			return err == nil
		case "$ref":
			err = fmt.Errorf("shared attribute maps are not supported: %w", ErrReferenceResolution)
			return false
		}
		var v *story.Value
		v, err = st.value(e.Kind, name, value)
		if err != nil {
			err = fmt.Errorf("attribute %s: %w", name, err)
			return false
		}
		e.Attributes.Set(name, v)
		return true
	})
	return err
}

func (st *decodeState) shapeFor(kind story.Kind, key string) (story.Shape, bool) {
	if shape, ok := story.WellKnownShape(kind, key); ok {
		return shape, true
	}
	if st.hints != nil {
		return st.hints(kind, key)
	}
	return 0, false
}

func (st *decodeState) value(kind story.Kind, key string, raw gjson.Result) (*story.Value, error) {
	shape, known := st.shapeFor(kind, key)
	if !known {
		var err error
		shape, err = st.inferShape(raw)
		if err != nil {
			return nil, err
		}
	}

	switch shape {
	case story.ShapeEntityRef:
		h, err := st.entity(raw)
		if err != nil {
			return nil, err
		}
		return story.RefValue(h), nil
	case story.ShapeEntityRefList:
		return st.list(raw, story.RefListValue(), func(v *story.Value, item gjson.Result) error {
			h, err := st.entity(item)
			if err != nil {
				return err
			}
			if h != story.NoHandle {
				v.Refs = append(v.Refs, h)
			}
			return nil
		})
	case story.ShapeRelationList:
		return st.list(raw, story.RelationListValue(), func(v *story.Value, item gjson.Result) error {
			rel, err := st.relation(item)
			if err != nil {
				return err
			}
			v.Relations = append(v.Relations, rel)
			return nil
		})
	case story.ShapeScalarList:
		return st.list(raw, story.ScalarListValue(), func(v *story.Value, item gjson.Result) error {
			s, err := scalar(item)
			if err != nil {
				return err
			}
			v.Scalars = append(v.Scalars, s)
			return nil
		})
	}

	s, err := scalar(raw)
	if err != nil {
		return nil, err
	}
	return story.ScalarValue(s), nil
}

// inferShape types an attribute the key table does not cover from its
// content.
func (st *decodeState) inferShape(raw gjson.Result) (story.Shape, error) {
	if !raw.IsObject() {
		return story.ShapeScalar, nil
	}
	fields := objectFields(raw)
	if id, ok := fields["$ref"]; ok {
		r, ok := st.ids[id.String()]
		if !ok {
			return 0, fmt.Errorf("$ref %q: %w", id.String(), ErrReferenceResolution)
		}
		switch r.kind {
		case refEntity:
			return story.ShapeEntityRef, nil
		case refList:
			return r.value.Shape, nil
		}
		return 0, fmt.Errorf("$ref %q points at the wrong object: %w", id.String(), ErrReferenceResolution)
	}
	if _, ok := fields["kind"]; ok {
		return story.ShapeEntityRef, nil
	}
	values, ok := fields["$values"]
	if !ok || !values.IsArray() {
		return 0, fmt.Errorf("object attribute without $values: %w", ErrMalformed)
	}
	items := values.Array()
	if len(items) == 0 {
		return story.ShapeScalarList, nil
	}
	first := items[0]
	if !first.IsObject() {
		return story.ShapeScalarList, nil
	}
	inner := objectFields(first)
	if _, ok := inner["character"]; ok {
		return story.ShapeRelationList, nil
	}
	if id, ok := inner["$ref"]; ok {
		if r, ok := st.ids[id.String()]; ok && r.kind == refRelation {
			return story.ShapeRelationList, nil
		}
	}
	return story.ShapeEntityRefList, nil
}

func (st *decodeState) list(raw gjson.Result, v *story.Value, item func(v *story.Value, item gjson.Result) error) (*story.Value, error) {
	if raw.Type == gjson.Null {
		return v, nil
	}
	if !raw.IsObject() {
		return nil, fmt.Errorf("list is not an object: %w", ErrMalformed)
	}
	fields := objectFields(raw)
	if id, ok := fields["$ref"]; ok {
		r, err := st.resolve(id, refList)
		if err != nil {
			return nil, err
		}
		if r.value.Shape != v.Shape {
			return nil, fmt.Errorf("$ref %q is a %s: %w", id.String(), r.value.Shape, ErrReferenceResolution)
		}
		return r.value.Clone(), nil
	}
	if err := st.define(fields["$id"], ref{kind: refList, value: v}); err != nil {
		return nil, err
	}
	if err := st.eachListItem(raw, func(elem gjson.Result) error {
		return item(v, elem)
	}); err != nil {
		return nil, err
	}
	return v, nil
}

func (st *decodeState) eachListItem(raw gjson.Result, fn func(item gjson.Result) error) error {
	if !raw.IsObject() {
		return fmt.Errorf("list is not an object: %w", ErrMalformed)
	}
	fields := objectFields(raw)
	if _, ok := fields["$ref"]; ok {
		return fmt.Errorf("shared entity list: %w", ErrReferenceResolution)
	}
	values, ok := fields["$values"]
	if !ok || !values.IsArray() {
		return fmt.Errorf("list without $values: %w", ErrMalformed)
	}
	var err error
	values.ForEach(func(_, item gjson.Result) bool {
		err = fn(item)
		return err == nil
	})
	return err
}

func (st *decodeState) relation(raw gjson.Result) (story.Relation, error) {
	if !raw.IsObject() {
		return story.Relation{}, fmt.Errorf("relation is not an object: %w", ErrMalformed)
	}
	fields := objectFields(raw)
	if _, ok := fields["$ref"]; ok {
		return story.Relation{}, fmt.Errorf("shared relation entry: %w", ErrReferenceResolution)
	}
	if err := st.define(fields["$id"], ref{kind: refRelation}); err != nil {
		return story.Relation{}, err
	}
	h, err := st.entity(fields["character"])
	if err != nil {
		return story.Relation{}, err
	}
	if h == story.NoHandle {
		return story.Relation{}, fmt.Errorf("relation without character: %w", ErrMalformed)
	}
	weight, ok := fields["weight"]
	if !ok || weight.Type != gjson.Number {
		return story.Relation{}, fmt.Errorf("relation weight is not a number: %w", ErrMalformed)
	}
	return story.Relation{Character: h, Weight: weight.Float()}, nil
}

func scalar(raw gjson.Result) (story.Scalar, error) {
	switch raw.Type {
	case gjson.Null:
		return story.Null(), nil
	case gjson.True:
		return story.Bool(true), nil
	case gjson.False:
		return story.Bool(false), nil
	case gjson.Number:
		return story.Number(raw.Float()), nil
	case gjson.String:
		s := raw.String()
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return story.Date(t), nil
		}
		return story.String(s), nil
	}
	return story.Scalar{}, fmt.Errorf("unexpected %s where a scalar belongs: %w", raw.Raw, ErrMalformed)
}

// objectFields indexes an object's members by exact key. gjson paths treat
// several characters specially, so keys are matched here instead.
func objectFields(obj gjson.Result) map[string]gjson.Result {
	fields := make(map[string]gjson.Result)
	obj.ForEach(func(key, value gjson.Result) bool {
		fields[key.String()] = value
		return true
	})
	return fields
}
