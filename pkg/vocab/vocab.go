// Package vocab provides the vocabulary data model for Bowline.
//
// A bowtie diagram is built from four fixed vocabulary types:
//   - Activity: human activities that cause environmental pressures
//   - Pressure: the pressures those activities exert
//   - Consequence: outcomes that pressures lead to
//   - Control: measures that prevent (cause side) or mitigate
//     (consequence side) the causal chain
//
// Items are identified by dotted hierarchical paths ("A1.2.3"), where the
// level of an item equals the number of dotted segments and the parent is
// the path with its last segment removed.
//
// A Snapshot holds one loaded vocabulary. Snapshots are immutable once
// built: the hosting application reloads the vocabulary wholesale, it never
// patches items in place. This makes a Snapshot safe to share across
// concurrent candidate-generation workers without locking.
//
// Example:
//
//	snap := vocab.NewSnapshot([]vocab.Item{
//		{ID: "A1", Name: "Commercial fishing", Type: vocab.Activity},
//		{ID: "P1", Name: "Overfishing pressure", Type: vocab.Pressure},
//	})
//
//	for _, item := range snap.ByType(vocab.Activity) {
//		fmt.Println(item.ID, item.Name)
//	}
package vocab

import (
	"fmt"
	"strings"
)

// ItemType is one of the four fixed vocabulary types.
type ItemType string

const (
	Activity    ItemType = "activity"
	Pressure    ItemType = "pressure"
	Consequence ItemType = "consequence"
	Control     ItemType = "control"
)

// Types lists all vocabulary types in bowtie order (cause side to
// consequence side, controls last).
var Types = []ItemType{Activity, Pressure, Consequence, Control}

// Valid reports whether t is one of the four known types.
func (t ItemType) Valid() bool {
	switch t {
	case Activity, Pressure, Consequence, Control:
		return true
	}
	return false
}

// ParseItemType converts a string to an ItemType.
func ParseItemType(s string) (ItemType, error) {
	t := ItemType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown vocabulary type %q", s)
	}
	return t, nil
}

// Item is a single vocabulary entry.
//
// Items are value types and immutable once loaded. ParentID, when non-empty,
// equals ID with its last dotted segment removed; Level equals the number of
// dotted segments in ID. Both are derivable from ID alone (see Level and
// ParentID), so loaders may leave them zero and call Normalize.
type Item struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Type     ItemType `yaml:"type" json:"type"`
	Level    int      `yaml:"level,omitempty" json:"level"`
	ParentID string   `yaml:"parent_id,omitempty" json:"parent_id,omitempty"`
}

// Level returns the hierarchy depth encoded in a dotted id.
// "A1" is level 1, "A1.2.3" is level 3. An empty id is level 0.
func Level(id string) int {
	if id == "" {
		return 0
	}
	return strings.Count(id, ".") + 1
}

// ParentID returns the dotted id with its last segment removed,
// or "" for a top-level id.
func ParentID(id string) string {
	i := strings.LastIndex(id, ".")
	if i < 0 {
		return ""
	}
	return id[:i]
}

// Normalize fills the derived Level and ParentID fields from ID.
func (it Item) Normalize() Item {
	it.Level = Level(it.ID)
	it.ParentID = ParentID(it.ID)
	return it
}

// Snapshot is an immutable view of one loaded vocabulary.
//
// The snapshot is read-only after construction; candidate generation
// workers share it freely.
type Snapshot struct {
	items  []Item
	byType map[ItemType][]Item
	byID   map[string]Item
}

// NewSnapshot builds a snapshot from loaded items.
//
// Derived fields (Level, ParentID) are normalized on the way in. Input
// validation (non-empty ids and names, consistent parent relationships) is
// the loader's responsibility; NewSnapshot assumes validated input.
func NewSnapshot(items []Item) *Snapshot {
	s := &Snapshot{
		items:  make([]Item, 0, len(items)),
		byType: make(map[ItemType][]Item, len(Types)),
		byID:   make(map[string]Item, len(items)),
	}
	for _, it := range items {
		it = it.Normalize()
		s.items = append(s.items, it)
		s.byType[it.Type] = append(s.byType[it.Type], it)
		s.byID[it.ID] = it
	}
	return s
}

// Items returns all items in load order.
func (s *Snapshot) Items() []Item {
	return s.items
}

// ByType returns all items of the given type, in load order.
func (s *Snapshot) ByType(t ItemType) []Item {
	return s.byType[t]
}

// Get looks up an item by id.
func (s *Snapshot) Get(id string) (Item, bool) {
	it, ok := s.byID[id]
	return it, ok
}

// Len returns the total number of items.
func (s *Snapshot) Len() int {
	return len(s.items)
}

// Counts returns the item count per type.
func (s *Snapshot) Counts() map[ItemType]int {
	counts := make(map[ItemType]int, len(s.byType))
	for t, items := range s.byType {
		counts[t] = len(items)
	}
	return counts
}
