package facts

import (
	"fmt"
	"slices"
)

// Fact is one (subject, predicate, object) triple.
type Fact struct {
	Subject   string
	Predicate string
	Object    Value
}

// String renders the fact for trace logs.
func (f Fact) String() string {
	return fmt.Sprintf("%s %s %s", f.Subject, f.Predicate, f.Object)
}

// Entry is a (predicate, object) pair used by [Store.Add].
type Entry struct {
	Predicate string
	Object    Value
}

// Store is a named, insertion-ordered collection of facts.
//
// Store is not safe for concurrent use. Every store is owned by exactly one
// model actor and is only touched from inside its processing loop.
type Store struct {
	name   string
	facts  []Fact
	blanks int
}

// NewStore creates an empty store.
func NewStore(name string) *Store {
	return &Store{name: name}
}

// Name returns the store name.
func (s *Store) Name() string { return s.name }

// Len returns the number of facts.
func (s *Store) Len() int { return len(s.facts) }

// Facts returns a copy of all facts in insertion order.
func (s *Store) Facts() []Fact {
	return slices.Clone(s.facts)
}

// Each calls fn for every fact in insertion order until fn returns false.
func (s *Store) Each(fn func(Fact) bool) {
	for _, f := range s.facts {
		if !fn(f) {
			return
		}
	}
}

// Add appends one fact per entry for subject. Duplicate facts are allowed.
func (s *Store) Add(subject string, entries ...Entry) {
	for _, e := range entries {
		s.facts = append(s.facts, Fact{Subject: subject, Predicate: e.Predicate, Object: e.Object})
	}
}

// Replace sets the single object of (subject, predicate).
//
// Every existing fact for the pair is removed and object is stored in place of
// the first one, or appended if there was none. Returns false when the store
// already held exactly that one fact, so replaying identical data reports no
// change.
func (s *Store) Replace(subject, predicate string, object Value) bool {
	first := -1
	count := 0
	for i, f := range s.facts {
		if f.Subject == subject && f.Predicate == predicate {
			if first < 0 {
				first = i
			}
			count++
		}
	}

	if first < 0 {
		s.facts = append(s.facts, Fact{Subject: subject, Predicate: predicate, Object: object})
		return true
	}
	if count == 1 && s.facts[first].Object == object {
		return false
	}

	s.facts[first].Object = object
	if count > 1 {
		kept := s.facts[:first+1]
		for _, f := range s.facts[first+1:] {
			if f.Subject == subject && f.Predicate == predicate {
				continue
			}
			kept = append(kept, f)
		}
		s.facts = kept
	}
	return true
}

// Remove deletes every fact of (subject, predicate) and reports whether any
// were present.
func (s *Store) Remove(subject, predicate string) bool {
	n := len(s.facts)
	s.facts = slices.DeleteFunc(s.facts, func(f Fact) bool {
		return f.Subject == subject && f.Predicate == predicate
	})
	return len(s.facts) != n
}

// Find returns the first object of (subject, predicate).
func (s *Store) Find(subject, predicate string) (Value, bool) {
	for _, f := range s.facts {
		if f.Subject == subject && f.Predicate == predicate {
			return f.Object, true
		}
	}
	return Value{}, false
}

// Subjects returns the distinct subjects having predicate with the given
// object, in insertion order.
func (s *Store) Subjects(predicate string, object Value) []string {
	var out []string
	for _, f := range s.facts {
		if f.Predicate == predicate && f.Object == object && !slices.Contains(out, f.Subject) {
			out = append(out, f.Subject)
		}
	}
	return out
}

// Clear removes every fact. The blank name counter keeps counting so names
// handed out earlier are never reused.
func (s *Store) Clear() bool {
	changed := len(s.facts) > 0
	s.facts = s.facts[:0]
	return changed
}

// BlankName returns a fresh blank subject name such as "_:alert-3".
func (s *Store) BlankName(prefix string) string {
	s.blanks++
	return fmt.Sprintf("_:%s-%d", prefix, s.blanks)
}
