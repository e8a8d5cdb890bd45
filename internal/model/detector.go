package model

import (
	"errors"
	"log/slog"

	"github.com/jpalmerr/gnos/internal/facts"
	"github.com/jpalmerr/gnos/internal/query"
)

// evaluate runs every query against store. A failing query contributes an
// empty result set and does not stop its siblings; the failures are joined
// into the returned error.
func evaluate(cache *query.Cache, store *facts.Store, texts []string) ([]query.ResultSet, error) {
	out := make([]query.ResultSet, len(texts))
	var errs []error
	for i, text := range texts {
		rs, err := cache.Eval(store, text)
		if err != nil {
			errs = append(errs, err)
			rs = query.ResultSet{}
		}
		out[i] = rs
	}
	return out, errors.Join(errs...)
}

// detectChanges re-evaluates every subscription of store after a mutation.
//
// A subscription is pushed its new solutions only when they differ from the
// last ones delivered. A subscription with a failing query is also pushed the
// error after every mutation, after any solution push.
func detectChanges(cache *query.Cache, store *facts.Store, subs []*subscription, logger *slog.Logger) {
	for _, sub := range subs {
		solutions, err := evaluate(cache, store, sub.queries)

		if !query.EqualLists(solutions, sub.last) {
			sub.last = solutions
			if !sub.sink.Send(Notification{Solutions: solutions}) {
				logger.Debug("subscription sink closed", "store", store.Name(), "key", sub.key)
			}
		}

		if err != nil {
			logger.Debug("subscription query failed", "store", store.Name(), "key", sub.key, "error", err)
			sub.sink.Send(Notification{Solutions: solutions, Err: err})
		}
	}
}
