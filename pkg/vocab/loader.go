package vocab

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// vocabularyFile is the on-disk YAML layout:
//
//	activities:
//	  - id: A1
//	    name: Commercial fishing
//	pressures:
//	  - id: P1
//	    name: Overfishing pressure
//	consequences:
//	  - id: C1
//	    name: Fish stock collapse
//	controls:
//	  - id: K1
//	    name: Fishing quota regulation
//
// Item type is implied by the section; an explicit type field on an item
// is ignored in favor of the section it appears under.
type vocabularyFile struct {
	Activities   []Item `yaml:"activities"`
	Pressures    []Item `yaml:"pressures"`
	Consequences []Item `yaml:"consequences"`
	Controls     []Item `yaml:"controls"`
}

// LoadFile reads a vocabulary snapshot from a YAML file.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return Load(data)
}

// Load parses a vocabulary snapshot from YAML bytes.
//
// Every item must carry a non-empty id and name. Duplicate ids are
// rejected: the hosting application replaces a vocabulary wholesale, so a
// duplicate always indicates a malformed file rather than an update.
func Load(data []byte) (*Snapshot, error) {
	var f vocabularyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}

	sections := []struct {
		typ   ItemType
		items []Item
	}{
		{Activity, f.Activities},
		{Pressure, f.Pressures},
		{Consequence, f.Consequences},
		{Control, f.Controls},
	}

	seen := make(map[string]struct{})
	var items []Item
	for _, sec := range sections {
		for _, it := range sec.items {
			if it.ID == "" || it.Name == "" {
				return nil, fmt.Errorf("vocabulary item in %s section missing id or name", sec.typ)
			}
			if _, dup := seen[it.ID]; dup {
				return nil, fmt.Errorf("duplicate vocabulary id %q", it.ID)
			}
			seen[it.ID] = struct{}{}
			it.Type = sec.typ
			items = append(items, it)
		}
	}

	return NewSnapshot(items), nil
}
