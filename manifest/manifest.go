// Package manifest reads the static command catalog used to seed a store.
//
// A manifest maps command ids to entries:
//
//	avancer:
//	  description: faire avancer le robot
//	  payload: |-
//	    motor.left.target = 200
//	    motor.right.target = 200
//
// JSON documents of the same shape are accepted. The payload may also be
// given under the key "code".
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultCategory = "default"

//go:embed default.yaml
var defaultManifest []byte

type Entry struct {
	Id          string `json:"id"`
	Description string `json:"description"`
	Payload     string `json:"payload"`
	Category    string `json:"category"`
}

type rawEntry struct {
	Description string `yaml:"description"`
	Payload     string `yaml:"payload"`
	Code        string `yaml:"code"`
	Category    string `yaml:"category"`
}

// Manifest holds entries in document order. Bootstrap inserts them in that
// order, which is the order similarity ties resolve in.
type Manifest struct {
	Entries []Entry
}

func (m Manifest) Len() int {
	return len(m.Entries)
}

// Parse decodes a YAML or JSON manifest. Entry contents are not validated
// here so that one bad entry does not hide the rest.
func Parse(data []byte) (Manifest, error) {
	var doc yaml.Node

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}

	if len(doc.Content) == 0 {
		return Manifest{Entries: []Entry{}}, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return Manifest{}, fmt.Errorf("parse manifest: line %d: expected a mapping of command ids", root.Line)
	}

	entries := make([]Entry, 0, len(root.Content)/2)
	seen := map[string]bool{}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]

		id := strings.TrimSpace(key.Value)
		if seen[id] {
			return Manifest{}, fmt.Errorf("parse manifest: line %d: duplicate command id %q", key.Line, id)
		}
		seen[id] = true

		var r rawEntry
		if err := value.Decode(&r); err != nil {
			return Manifest{}, fmt.Errorf("parse manifest: entry %q: %w", id, err)
		}

		payload := r.Payload
		if len(strings.TrimSpace(payload)) == 0 {
			payload = r.Code
		}

		category := strings.TrimSpace(r.Category)
		if len(category) == 0 {
			category = DefaultCategory
		}

		entries = append(entries, Entry{
			Id:          id,
			Description: strings.TrimSpace(r.Description),
			Payload:     payload,
			Category:    category,
		})
	}

	return Manifest{Entries: entries}, nil
}

func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	return Parse(data)
}

// Default returns the built-in motion commands.
func Default() Manifest {
	m, err := Parse(defaultManifest)
	if err != nil {
		panic(err)
	}
	return m
}
