package story

import (
	"fmt"
	"strings"
)

type Kind int

const (
	Character Kind = iota
	Item
	Location
	Event
)

var kindNames = [...]string{
	Character: "character",
	Item:      "item",
	Location:  "location",
	Event:     "event",
}

func Kinds() []Kind {
	return []Kind{Character, Item, Location, Event}
}

func (k Kind) Valid() bool {
	return k >= Character && k <= Event
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

func ParseKind(name string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == key {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown entity kind: %q", name)
}
