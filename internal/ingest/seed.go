package ingest

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/gnos/internal/facts"
	"github.com/jpalmerr/gnos/internal/model"
)

// Seed is a set of facts loaded into one store at startup.
//
// The file format keeps the order facts are written in:
//
//	store: primary
//	subjects:
//	  - subject: gnos:map
//	    facts:
//	      gnos:poll_interval: 10
//	      gnos:network: "<devices:core-1>"
//	      gnos:tag: [lab, east]
//
// A list value adds one fact per element. Strings of the form "<iri>" are
// IRIs.
type Seed struct {
	Store string
	Facts []facts.Fact
}

type seedFile struct {
	Store    string        `yaml:"store"`
	Subjects []seedSubject `yaml:"subjects"`
}

type seedSubject struct {
	Subject string    `yaml:"subject"`
	Facts   yaml.Node `yaml:"facts"`
}

// LoadSeed reads a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed parses seed YAML. The store defaults to [PrimaryStore].
func ParseSeed(data []byte) (*Seed, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed YAML: %w", err)
	}

	seed := &Seed{Store: f.Store}
	if seed.Store == "" {
		seed.Store = PrimaryStore
	}

	var errs []error
	for i, sub := range f.Subjects {
		if sub.Subject == "" {
			errs = append(errs, fmt.Errorf("subjects[%d]: subject is required", i))
			continue
		}
		if sub.Facts.Kind == 0 {
			continue
		}
		if sub.Facts.Kind != yaml.MappingNode {
			errs = append(errs, fmt.Errorf("subjects[%d]: facts must be a mapping", i))
			continue
		}
		for j := 0; j+1 < len(sub.Facts.Content); j += 2 {
			predicate := sub.Facts.Content[j].Value
			values, err := seedValues(sub.Facts.Content[j+1])
			if err != nil {
				errs = append(errs, fmt.Errorf("subjects[%d] %s: %w", i, predicate, err))
				continue
			}
			for _, v := range values {
				seed.Facts = append(seed.Facts, facts.Fact{Subject: sub.Subject, Predicate: predicate, Object: v})
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return seed, nil
}

func seedValues(node *yaml.Node) ([]facts.Value, error) {
	nodes := []*yaml.Node{node}
	if node.Kind == yaml.SequenceNode {
		nodes = node.Content
	}

	out := make([]facts.Value, 0, len(nodes))
	for _, n := range nodes {
		if n.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: expected a scalar", n.Line)
		}
		var raw any
		if err := n.Decode(&raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		v, err := facts.FromNative(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Update returns the update adding every seed fact the store lacks.
func (s *Seed) Update() model.UpdateFunc {
	return func(store *facts.Store, _ string) bool {
		present := make(map[facts.Fact]bool, store.Len())
		store.Each(func(f facts.Fact) bool {
			present[f] = true
			return true
		})

		changed := false
		for _, f := range s.Facts {
			if present[f] {
				continue
			}
			store.Add(f.Subject, facts.Entry{Predicate: f.Predicate, Object: f.Object})
			present[f] = true
			changed = true
		}
		return changed
	}
}
