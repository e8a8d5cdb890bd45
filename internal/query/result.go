package query

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/jpalmerr/gnos/internal/facts"
)

// Row maps variable names (without '?') to their bound values. Variables left
// unbound by an OPTIONAL are absent.
type Row map[string]facts.Value

// Equal reports whether r and other bind the same variables to the same values.
func (r Row) Equal(other Row) bool {
	return maps.Equal(r, other)
}

// ResultSet is the ordered list of rows produced by evaluating one query.
type ResultSet []Row

// Equal reports structural equality: same number of rows and pairwise equal
// rows in the same order. A nil and an empty result set are equal.
func (rs ResultSet) Equal(other ResultSet) bool {
	return slices.EqualFunc(rs, other, Row.Equal)
}

// MarshalJSON encodes the rows as a JSON array, using [] for an empty set.
func (rs ResultSet) MarshalJSON() ([]byte, error) {
	if len(rs) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal([]Row(rs))
}

// EqualLists compares two lists of result sets, as pushed to subscriptions.
func EqualLists(a, b []ResultSet) bool {
	return slices.EqualFunc(a, b, ResultSet.Equal)
}
