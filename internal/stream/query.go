package stream

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jpalmerr/gnos/internal/mailbox"
	"github.com/jpalmerr/gnos/internal/model"
)

// QueryModel is the part of the fact model a query bridge talks to.
type QueryModel interface {
	Register(store, key string, queries []string, sink model.Sink) bool
	Deregister(store, key string) bool
}

type querySource struct {
	model   QueryModel
	store   string
	queries []string
}

func (s querySource) Register(key string, sink *mailbox.Mailbox[model.Notification]) bool {
	return s.model.Register(s.store, key, s.queries, sink)
}

func (s querySource) Deregister(key string) bool {
	return s.model.Deregister(s.store, key)
}

// NewQueryBridge creates a bridge streaming the solutions of queries on store.
//
// A single query streams its result set as a flat JSON array; several stream
// an array holding one array per query. Until the first push the refresh
// payload is null.
func NewQueryBridge(m QueryModel, store string, queries []string, logger *slog.Logger) *Bridge[model.Notification] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge[model.Notification]{
		key:     "query " + uuid.NewString(),
		source:  querySource{model: m, store: store, queries: queries},
		encode:  encodeNotification,
		initial: []byte("null"),
		logger:  logger.With("store", store),
	}
}

func encodeNotification(n model.Notification) (Encoded, error) {
	if n.Err != nil {
		data, err := json.Marshal(errorText(n.Err))
		return Encoded{Data: data, Err: true}, err
	}

	var (
		data []byte
		err  error
	)
	if len(n.Solutions) == 1 {
		data, err = json.Marshal(n.Solutions[0])
	} else {
		data, err = json.Marshal(n.Solutions)
	}
	return Encoded{Data: data}, err
}

// errorText capitalizes the "expected ..." text of query errors.
func errorText(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, "expected"); ok {
		return "Expected" + rest
	}
	return "Expected no error, found " + msg
}
