package validate

import (
	"fmt"
	"strings"

	"storygraph/internal/story"
)

// backLink pairs a list on one kind with the list on the other kind that
// must mention the entity back.
type backLink struct {
	kind    story.Kind
	key     string
	target  story.Kind
	backKey string
}

var backLinks = []backLink{
	{story.Character, story.KeyLocations, story.Location, story.KeyCharacters},
	{story.Location, story.KeyCharacters, story.Character, story.KeyLocations},
	{story.Character, story.KeyEvents, story.Event, story.KeyCharacters},
	{story.Event, story.KeyCharacters, story.Character, story.KeyEvents},
	{story.Item, story.KeyEvents, story.Event, story.KeyItems},
	{story.Event, story.KeyItems, story.Item, story.KeyEvents},
	{story.Location, story.KeyEvents, story.Event, story.KeyLocations},
	{story.Event, story.KeyLocations, story.Location, story.KeyEvents},
}

// slot is an exclusive reference on an item mirrored by a list on its owner.
type slot struct {
	owner   story.Kind
	listKey string
	slotKey string
}

var slots = []slot{
	{story.Character, story.KeyItems, story.KeyHost},
	{story.Location, story.KeyItems, story.KeyLocation},
}

// listKinds names the kind every well-known list may hold.
var listKinds = map[string]story.Kind{
	story.KeyRelations:  story.Character,
	story.KeyCharacters: story.Character,
	story.KeyItems:      story.Item,
	story.KeyLocations:  story.Location,
	story.KeyEvents:     story.Event,
}

type checker struct {
	r       *story.Registry
	members map[story.Handle]bool
}

func (c *checker) name(h story.Handle) string {
	if e, ok := c.r.Get(h); ok && e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("#%d", h)
}

func (c *checker) duplicateNames(entities []story.Handle) []Issue {
	var issues []Issue
	seen := make(map[string]bool)
	for _, h := range entities {
		e, ok := c.r.Get(h)
		if !ok || e.Name == "" {
			continue
		}
		key := e.Kind.String() + "|" + strings.ToLower(e.Name)
		if seen[key] {
			issues = append(issues, newIssue(e, SeverityError, codeDuplicateName, "duplicate entity name in plot"))
			continue
		}
		seen[key] = true
	}
	return issues
}

// references checks every handle held by e: it must resolve, must not be e
// itself, must be a plot member, and must appear once per list.
func (c *checker) references(h story.Handle, e *story.Entity) []Issue {
	var issues []Issue
	e.Attributes.Each(func(key string, v *story.Value) bool {
		seen := make(map[story.Handle]bool)
		for _, ref := range v.Handles() {
			switch {
			case ref == h:
				issues = append(issues, newIssue(e, SeverityError, codeSelfReference,
					fmt.Sprintf("%s refers to the entity itself", key)))
			case !c.r.Valid(ref):
				issues = append(issues, newIssue(e, SeverityError, codeInvalidReference,
					fmt.Sprintf("%s refers to unknown handle %d", key, ref)))
				continue
			case !c.members[ref]:
				issues = append(issues, newIssue(e, SeverityWarn, codeDanglingReference,
					fmt.Sprintf("%s refers to %s, which is no longer in the plot", key, c.name(ref))))
			}
			if seen[ref] {
				issues = append(issues, newIssue(e, SeverityError, codeDuplicateReference,
					fmt.Sprintf("%s lists %s more than once", key, c.name(ref))))
			}
			seen[ref] = true

			if want, ok := listKinds[key]; ok {
				if target, ok := c.r.Get(ref); ok && target.Kind != want {
					issues = append(issues, newIssue(e, SeverityError, codeWrongKind,
						fmt.Sprintf("%s holds %s %s", key, target.Kind, target.Name)))
				}
			}
		}
		return true
	})
	return issues
}

func (c *checker) relations(h story.Handle, e *story.Entity) []Issue {
	v, ok := e.Attr(story.KeyRelations)
	if !ok || e.Kind != story.Character {
		return nil
	}
	var issues []Issue
	for _, rel := range v.Relations {
		if rel.Weight == 0 {
			issues = append(issues, newIssue(e, SeverityError, codeZeroWeight,
				fmt.Sprintf("relation to %s has zero weight", c.name(rel.Character))))
		}
		partner, ok := c.r.Get(rel.Character)
		if !ok || rel.Character == h {
			continue
		}
		back, found := relationTo(partner, h)
		switch {
		case !found:
			issues = append(issues, newIssue(e, SeverityError, codeAsymmetricRelation,
				fmt.Sprintf("relation to %s is not returned", partner.Name)))
		case back != rel.Weight && h < rel.Character:
			issues = append(issues, newIssue(e, SeverityError, codeAsymmetricRelation,
				fmt.Sprintf("relation to %s has weight %g one way and %g the other", partner.Name, rel.Weight, back)))
		}
	}
	return issues
}

func relationTo(e *story.Entity, h story.Handle) (float64, bool) {
	v, ok := e.Attr(story.KeyRelations)
	if !ok {
		return 0, false
	}
	for _, rel := range v.Relations {
		if rel.Character == h {
			return rel.Weight, true
		}
	}
	return 0, false
}

func (c *checker) backLinks(h story.Handle, e *story.Entity) []Issue {
	var issues []Issue
	for _, bl := range backLinks {
		if e.Kind != bl.kind {
			continue
		}
		v, ok := e.Attr(bl.key)
		if !ok {
			continue
		}
		for _, ref := range v.Handles() {
			target, ok := c.r.Get(ref)
			if !ok || ref == h || target.Kind != bl.target {
				continue
			}
			if !holds(target, bl.backKey, h) {
				issues = append(issues, newIssue(e, SeverityError, codeMissingBackRef,
					fmt.Sprintf("%s lists %s but %s.%s does not list %s", bl.key, target.Name, target.Name, bl.backKey, e.Name)))
			}
		}
	}
	return issues
}

func (c *checker) slots(h story.Handle, e *story.Entity) []Issue {
	var issues []Issue
	for _, s := range slots {
		switch e.Kind {
		case s.owner:
			v, ok := e.Attr(s.listKey)
			if !ok {
				continue
			}
			for _, ref := range v.Handles() {
				item, ok := c.r.Get(ref)
				if !ok || item.Kind != story.Item {
					continue
				}
				if held, _ := item.Attr(s.slotKey); held == nil || held.Ref != h {
					issues = append(issues, newIssue(e, SeverityError, codeSlotMismatch,
						fmt.Sprintf("%s lists %s but its %s is not %s", s.listKey, item.Name, s.slotKey, e.Name)))
				}
			}
		case story.Item:
			v, ok := e.Attr(s.slotKey)
			if !ok || v.Ref == story.NoHandle {
				continue
			}
			owner, ok := c.r.Get(v.Ref)
			if !ok || owner.Kind != s.owner {
				continue
			}
			if !holds(owner, s.listKey, h) {
				issues = append(issues, newIssue(e, SeverityError, codeSlotMismatch,
					fmt.Sprintf("%s is %s but %s does not list it", s.slotKey, owner.Name, owner.Name)))
			}
		}
	}
	return issues
}

// lifecycle flags entities that were never defined or never connected.
func (c *checker) lifecycle(h story.Handle, e *story.Entity) []Issue {
	if isPlaceholder(e) {
		return []Issue{newIssue(e, SeverityWarn, codeDanglingPlaceholder, "placeholder entity was never defined")}
	}
	if len(c.r.Partners(h)) == 0 {
		return []Issue{newIssue(e, SeverityWarn, codeOrphanedEntity, "entity has no relationships")}
	}
	return nil
}

func holds(e *story.Entity, key string, h story.Handle) bool {
	v, ok := e.Attr(key)
	if !ok {
		return false
	}
	for _, ref := range v.Handles() {
		if ref == h {
			return true
		}
	}
	return false
}
