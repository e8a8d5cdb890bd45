package query

import (
	"fmt"
	"maps"

	"github.com/expr-lang/expr"

	"github.com/jpalmerr/gnos/internal/facts"
)

// Eval evaluates q against store and returns its rows in a stable order: the
// order of the matching facts in the store.
//
// The returned result set is never nil. Every error returned by Eval begins
// with "expected".
func (q *Query) Eval(store *facts.Store) (ResultSet, error) {
	rows := []Row{{}}

	for _, el := range q.where {
		if el.triple != nil {
			rows = join(store, rows, *el.triple)
			continue
		}
		rows = leftJoin(store, rows, el.optional)
	}

	if len(q.filters) > 0 {
		kept := rows[:0]
		for _, row := range rows {
			ok, err := q.keep(row)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	out := make(ResultSet, 0, len(rows))
	for _, row := range rows {
		projected := make(Row, len(q.vars))
		for _, v := range q.vars {
			if val, ok := row[v]; ok {
				projected[v] = val
			}
		}
		out = append(out, projected)
	}
	return out, nil
}

func (q *Query) keep(row Row) (bool, error) {
	env := make(map[string]any, len(row))
	for name, v := range row {
		env[name] = v.Native()
	}

	for _, f := range q.filters {
		out, err := expr.Run(f.program, env)
		if err != nil {
			return false, fmt.Errorf("expected FILTER(%s) to evaluate: %w", f.source, err)
		}
		b, ok := out.(bool)
		if !ok {
			return false, fmt.Errorf("expected FILTER(%s) to yield a bool but found %T", f.source, out)
		}
		if !b {
			return false, nil
		}
	}
	return true, nil
}

// join extends every row with each fact matching pat.
func join(store *facts.Store, rows []Row, pat pattern) []Row {
	var out []Row
	for _, row := range rows {
		store.Each(func(f facts.Fact) bool {
			if ext, ok := match(pat, f, row); ok {
				out = append(out, ext)
			}
			return true
		})
	}
	return out
}

// leftJoin keeps rows for which the optional patterns have no match.
func leftJoin(store *facts.Store, rows []Row, pats []pattern) []Row {
	var out []Row
	for _, row := range rows {
		matched := []Row{row}
		for _, pat := range pats {
			matched = join(store, matched, pat)
			if len(matched) == 0 {
				break
			}
		}
		if len(matched) == 0 {
			out = append(out, row)
			continue
		}
		out = append(out, matched...)
	}
	return out
}

// match unifies pat with f under the bindings in row. The returned row is a
// fresh copy when any variable was bound.
func match(pat pattern, f facts.Fact, row Row) (Row, bool) {
	var bound Row
	bind := func(t term, v facts.Value) bool {
		if !t.isVar() {
			return sameValue(t.value, v)
		}
		if have, ok := row[t.variable]; ok {
			return have == v
		}
		if have, ok := bound[t.variable]; ok {
			return have == v
		}
		if bound == nil {
			bound = Row{}
		}
		bound[t.variable] = v
		return true
	}

	if !bind(pat.s, facts.IRI(f.Subject)) ||
		!bind(pat.p, facts.IRI(f.Predicate)) ||
		!bind(pat.o, f.Object) {
		return nil, false
	}
	if bound == nil {
		return row, true
	}

	ext := maps.Clone(row)
	if ext == nil {
		ext = Row{}
	}
	maps.Copy(ext, bound)
	return ext, true
}

// sameValue compares a constant from a query with a stored value. Numeric
// literals match ints and floats of the same magnitude.
func sameValue(want, have facts.Value) bool {
	if want == have {
		return true
	}
	a, ok := want.Number()
	if !ok {
		return false
	}
	b, ok := have.Number()
	return ok && a == b
}
