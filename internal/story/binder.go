package story

// DefaultWeight is the relation weight Bind uses between two characters.
const DefaultWeight = 1

// Bind links a and b according to their kinds. Calls that cannot apply
// (same handle, unknown handle, unsupported pair, already bound) change
// nothing and report nothing.
func (r *Registry) Bind(a, b Handle) {
	r.bind(a, b, DefaultWeight)
}

// BindWeighted is Bind with an explicit relation weight. The weight only
// matters between two characters.
func (r *Registry) BindWeighted(a, b Handle, weight float64) {
	r.bind(a, b, weight)
}

func (r *Registry) Unbind(a, b Handle) {
	ea, eb, ok := r.ordered(&a, &b)
	if !ok {
		return
	}
	switch {
	case ea.Kind == Character && eb.Kind == Character:
		unrelate(ea, b, eb, a)
	case ea.Kind == Character && eb.Kind == Item:
		r.release(a, ea, KeyItems, b, eb, KeyHost)
	case ea.Kind == Character && eb.Kind == Location:
		unlink(ea, KeyLocations, b, eb, KeyCharacters, a)
	case ea.Kind == Character && eb.Kind == Event:
		unlink(ea, KeyEvents, b, eb, KeyCharacters, a)
	case ea.Kind == Item && eb.Kind == Location:
		r.release(b, eb, KeyItems, a, ea, KeyLocation)
	case ea.Kind == Item && eb.Kind == Event:
		unlink(ea, KeyEvents, b, eb, KeyItems, a)
	case ea.Kind == Location && eb.Kind == Event:
		unlink(ea, KeyEvents, b, eb, KeyLocations, a)
	}
}

func (r *Registry) bind(a, b Handle, weight float64) {
	ea, eb, ok := r.ordered(&a, &b)
	if !ok {
		return
	}
	switch {
	case ea.Kind == Character && eb.Kind == Character:
		relate(ea, b, eb, a, weight)
	case ea.Kind == Character && eb.Kind == Item:
		r.claim(a, ea, KeyItems, b, eb, KeyHost)
	case ea.Kind == Character && eb.Kind == Location:
		link(ea, KeyLocations, b, eb, KeyCharacters, a)
	case ea.Kind == Character && eb.Kind == Event:
		link(ea, KeyEvents, b, eb, KeyCharacters, a)
	case ea.Kind == Item && eb.Kind == Location:
		r.claim(b, eb, KeyItems, a, ea, KeyLocation)
	case ea.Kind == Item && eb.Kind == Event:
		link(ea, KeyEvents, b, eb, KeyItems, a)
	case ea.Kind == Location && eb.Kind == Event:
		link(ea, KeyEvents, b, eb, KeyLocations, a)
	}
}

// ordered resolves both handles and swaps them so the lower kind comes
// first.
func (r *Registry) ordered(a, b *Handle) (*Entity, *Entity, bool) {
	if *a == *b {
		return nil, nil, false
	}
	ea, okA := r.Get(*a)
	eb, okB := r.Get(*b)
	if !okA || !okB {
		return nil, nil, false
	}
	if ea.Kind > eb.Kind {
		*a, *b = *b, *a
		ea, eb = eb, ea
	}
	return ea, eb, true
}

func relate(ea *Entity, b Handle, eb *Entity, a Handle, weight float64) {
	var ia, ib = -1, -1
	ra := ea.existing(KeyRelations, ShapeRelationList)
	rb := eb.existing(KeyRelations, ShapeRelationList)
	if ra != nil {
		ia = ra.relationIndex(b)
	}
	if rb != nil {
		ib = rb.relationIndex(a)
	}
	if weight == 0 {
		// A zero weight is the absence of a relation.
		if ia >= 0 || ib >= 0 {
			unrelate(ea, b, eb, a)
		}
		return
	}
	ra = ea.container(KeyRelations, ShapeRelationList)
	rb = eb.container(KeyRelations, ShapeRelationList)
	if ia >= 0 {
		ra.Relations[ia].Weight = weight
	} else {
		ra.Relations = append(ra.Relations, Relation{Character: b, Weight: weight})
	}
	if ib >= 0 {
		rb.Relations[ib].Weight = weight
	} else {
		rb.Relations = append(rb.Relations, Relation{Character: a, Weight: weight})
	}
}

func unrelate(ea *Entity, b Handle, eb *Entity, a Handle) {
	if ra := ea.existing(KeyRelations, ShapeRelationList); ra != nil {
		if i := ra.relationIndex(b); i >= 0 {
			ra.Relations = append(ra.Relations[:i], ra.Relations[i+1:]...)
		}
	}
	if rb := eb.existing(KeyRelations, ShapeRelationList); rb != nil {
		if i := rb.relationIndex(a); i >= 0 {
			rb.Relations = append(rb.Relations[:i], rb.Relations[i+1:]...)
		}
	}
}

func link(ea *Entity, keyA string, b Handle, eb *Entity, keyB string, a Handle) {
	addRef(ea.container(keyA, ShapeEntityRefList), b)
	addRef(eb.container(keyB, ShapeEntityRefList), a)
}

func unlink(ea *Entity, keyA string, b Handle, eb *Entity, keyB string, a Handle) {
	removeRef(ea.existing(keyA, ShapeEntityRefList), b)
	removeRef(eb.existing(keyB, ShapeEntityRefList), a)
}

// claim attaches item to owner through an exclusive slot, detaching it from
// whichever owner held the slot before.
func (r *Registry) claim(owner Handle, eo *Entity, listKey string, item Handle, ei *Entity, slotKey string) {
	addRef(eo.container(listKey, ShapeEntityRefList), item)
	slot := ei.container(slotKey, ShapeEntityRef)
	if prev := slot.Ref; prev != NoHandle && prev != owner {
		if ep, ok := r.Get(prev); ok {
			removeRef(ep.existing(listKey, ShapeEntityRefList), item)
		}
	}
	slot.Ref = owner
}

func (r *Registry) release(owner Handle, eo *Entity, listKey string, item Handle, ei *Entity, slotKey string) {
	removeRef(eo.existing(listKey, ShapeEntityRefList), item)
	if slot := ei.existing(slotKey, ShapeEntityRef); slot != nil && slot.Ref == owner {
		slot.Ref = NoHandle
	}
}

func addRef(list *Value, h Handle) {
	if list.refIndex(h) < 0 {
		list.Refs = append(list.Refs, h)
	}
}

func removeRef(list *Value, h Handle) {
	if list == nil {
		return
	}
	if i := list.refIndex(h); i >= 0 {
		list.Refs = append(list.Refs[:i], list.Refs[i+1:]...)
	}
}
