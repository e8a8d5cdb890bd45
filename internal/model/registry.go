package model

import (
	"slices"

	"github.com/jpalmerr/gnos/internal/query"
)

// Notification is one push to a subscription sink.
//
// Solutions holds one result set per registered query, in registration order.
// A notification with a non-nil Err reports that at least one query failed to
// compile or evaluate; its Solutions still carry an empty set in place of each
// failed query.
type Notification struct {
	Solutions []query.ResultSet
	Err       error
}

// Sink receives notifications for one subscription. Send must not block;
// *mailbox.Mailbox[Notification] is the usual implementation.
type Sink interface {
	Send(Notification) bool
}

type subscription struct {
	key     string
	queries []string
	sink    Sink
	last    []query.ResultSet
}

// registry maps store name to its subscriptions in registration order.
type registry map[string][]*subscription

func (r registry) find(store, key string) *subscription {
	for _, sub := range r[store] {
		if sub.key == key {
			return sub
		}
	}
	return nil
}

func (r registry) add(store string, sub *subscription) {
	r[store] = append(r[store], sub)
}

// remove deletes key from store and reports whether it was present.
func (r registry) remove(store, key string) bool {
	subs := r[store]
	i := slices.IndexFunc(subs, func(s *subscription) bool { return s.key == key })
	if i < 0 {
		return false
	}
	subs = slices.Delete(subs, i, i+1)
	if len(subs) == 0 {
		delete(r, store)
	} else {
		r[store] = subs
	}
	return true
}
