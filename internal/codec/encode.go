package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"storygraph/internal/story"
)

// EncodePlot writes the plot with every entity, attribute map, list and
// relation entry tagged by "$id" on first sight and "$ref" afterwards.
func EncodePlot(p *story.Plot) ([]byte, error) {
	var out []byte
	err := p.Snapshot(func(r *story.Registry, entities []story.Handle, clock int) error {
		enc := newEncoder(r)
		enc.buf.WriteString(`{"$id":`)
		enc.writeID()
		enc.buf.WriteString(`,"entities":`)
		if err := enc.writeList(len(entities), func(i int) error {
			return enc.writeEntity(entities[i])
		}); err != nil {
			return err
		}
		enc.buf.WriteString(`,"clock":`)
		enc.buf.WriteString(strconv.Itoa(clock))
		enc.buf.WriteByte('}')
		out = enc.buf.Bytes()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("encoding plot: %w", err)
	}
	return out, nil
}

// EncodeEntity writes h and everything reachable from it.
func EncodeEntity(r *story.Registry, h story.Handle) ([]byte, error) {
	if !r.Valid(h) {
		return nil, fmt.Errorf("encoding entity %d: %w", h, story.ErrNullInput)
	}
	enc := newEncoder(r)
	if err := enc.writeEntity(h); err != nil {
		return nil, fmt.Errorf("encoding entity %d: %w", h, err)
	}
	return enc.buf.Bytes(), nil
}

type encoder struct {
	r    *story.Registry
	buf  bytes.Buffer
	next int
	seen map[story.Handle]string
}

func newEncoder(r *story.Registry) *encoder {
	return &encoder{r: r, seen: make(map[story.Handle]string)}
}

func (enc *encoder) writeID() string {
	enc.next++
	id := strconv.Itoa(enc.next)
	enc.buf.WriteByte('"')
	enc.buf.WriteString(id)
	enc.buf.WriteByte('"')
	return id
}

func (enc *encoder) writeRef(id string) {
	enc.buf.WriteString(`{"$ref":"`)
	enc.buf.WriteString(id)
	enc.buf.WriteString(`"}`)
}

func (enc *encoder) writeEntity(h story.Handle) error {
	if id, ok := enc.seen[h]; ok {
		enc.writeRef(id)
		return nil
	}
	e, ok := enc.r.Get(h)
	if !ok {
		enc.buf.WriteString("null")
		return nil
	}

	enc.buf.WriteString(`{"$id":`)
	enc.seen[h] = enc.writeID()
	enc.buf.WriteString(`,"kind":`)
	enc.buf.WriteString(strconv.Itoa(int(e.Kind)))
	enc.buf.WriteString(`,"name":`)
	if err := enc.writeString(e.Name); err != nil {
		return err
	}
	enc.buf.WriteString(`,"description":`)
	if err := enc.writeString(e.Description); err != nil {
		return err
	}
	enc.buf.WriteString(`,"attributes":{"$id":`)
	enc.writeID()
	for _, key := range e.Attributes.Keys() {
		v, _ := e.Attributes.Get(key)
		enc.buf.WriteByte(',')
		if err := enc.writeString(key); err != nil {
			return err
		}
		enc.buf.WriteByte(':')
		if err := enc.writeValue(v); err != nil {
			return fmt.Errorf("attribute %s of %q: %w", key, e.Name, err)
		}
	}
	enc.buf.WriteString(`},"sequence":`)
	enc.buf.WriteString(strconv.Itoa(e.Sequence))
	enc.buf.WriteByte('}')
	return nil
}

func (enc *encoder) writeValue(v *story.Value) error {
	if v == nil {
		enc.buf.WriteString("null")
		return nil
	}
	switch v.Shape {
	case story.ShapeScalar:
		return enc.writeScalar(v.Scalar)
	case story.ShapeScalarList:
		return enc.writeList(len(v.Scalars), func(i int) error {
			return enc.writeScalar(v.Scalars[i])
		})
	case story.ShapeRelationList:
		return enc.writeList(len(v.Relations), func(i int) error {
			rel := v.Relations[i]
			enc.buf.WriteString(`{"$id":`)
			enc.writeID()
			enc.buf.WriteString(`,"character":`)
			if err := enc.writeEntity(rel.Character); err != nil {
				return err
			}
			enc.buf.WriteString(`,"weight":`)
			if err := enc.writeNumber(rel.Weight); err != nil {
				return err
			}
			enc.buf.WriteByte('}')
			return nil
		})
	case story.ShapeEntityRef:
		if v.Ref == story.NoHandle {
			enc.buf.WriteString("null")
			return nil
		}
		return enc.writeEntity(v.Ref)
	case story.ShapeEntityRefList:
		return enc.writeList(len(v.Refs), func(i int) error {
			return enc.writeEntity(v.Refs[i])
		})
	}
	return fmt.Errorf("unknown value shape %d", v.Shape)
}

func (enc *encoder) writeList(n int, item func(i int) error) error {
	enc.buf.WriteString(`{"$id":`)
	enc.writeID()
	enc.buf.WriteString(`,"$values":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			enc.buf.WriteByte(',')
		}
		if err := item(i); err != nil {
			return err
		}
	}
	enc.buf.WriteString("]}")
	return nil
}

func (enc *encoder) writeScalar(s story.Scalar) error {
	switch s.Kind {
	case story.ScalarString:
		return enc.writeString(s.Str)
	case story.ScalarNumber:
		return enc.writeNumber(s.Num)
	case story.ScalarBool:
		enc.buf.WriteString(strconv.FormatBool(s.Bool))
		return nil
	case story.ScalarDate:
		return enc.writeString(s.Time.Format(time.RFC3339Nano))
	}
	enc.buf.WriteString("null")
	return nil
}

func (enc *encoder) writeString(s string) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	enc.buf.Write(data)
	return nil
}

func (enc *encoder) writeNumber(n float64) error {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("unsupported number %v", n)
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	enc.buf.Write(data)
	return nil
}
