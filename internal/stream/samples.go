package stream

import (
	"encoding/json"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/jpalmerr/gnos/internal/mailbox"
	"github.com/jpalmerr/gnos/internal/samples"
	"github.com/jpalmerr/gnos/internal/units"
)

// sampleUnit is the base unit of every sample value.
const sampleUnit = "bps"

// SampleModel is the part of the sample model a sample bridge talks to.
type SampleModel interface {
	Register(key, owner string, sink samples.Sink) bool
	Deregister(key string) bool
}

type sampleSource struct {
	model SampleModel
	owner string
}

func (s sampleSource) Register(key string, sink *mailbox.Mailbox[[]samples.Detail]) bool {
	return s.model.Register(key, s.owner, sink)
}

func (s sampleSource) Deregister(key string) bool {
	return s.model.Deregister(key)
}

// SampleRecord is one element of a sample stream payload.
type SampleRecord struct {
	SampleName string  `json:"sample_name"`
	Min        float64 `json:"min"`
	Mean       float64 `json:"mean"`
	Max        float64 `json:"max"`
	Units      string  `json:"units"`
}

// NewSampleBridge creates a bridge streaming the sample details of owner,
// sorted by sample name and scaled to a readable unit. Until the first push
// the refresh payload is an empty array.
func NewSampleBridge(m SampleModel, owner string, logger *slog.Logger) *Bridge[[]samples.Detail] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge[[]samples.Detail]{
		key:     "samples " + uuid.NewString(),
		source:  sampleSource{model: m, owner: owner},
		encode:  encodeDetails,
		initial: []byte("[]"),
		logger:  logger.With("owner", owner),
	}
}

func encodeDetails(details []samples.Detail) (Encoded, error) {
	data, err := json.Marshal(Records(details))
	return Encoded{Data: data}, err
}

// Records sorts details by name in place and converts them to display
// records. Each record uses the prefix that suits its largest magnitude.
func Records(details []samples.Detail) []SampleRecord {
	slices.SortFunc(details, func(a, b samples.Detail) int {
		return strings.Compare(a.SampleName, b.SampleName)
	})

	out := make([]SampleRecord, 0, len(details))
	for _, d := range details {
		prefix := units.Best(max(math.Abs(d.Min), math.Abs(d.Mean), math.Abs(d.Max)))
		out = append(out, SampleRecord{
			SampleName: d.SampleName,
			Min:        units.New(d.Min).In(prefix),
			Mean:       units.New(d.Mean).In(prefix),
			Max:        units.New(d.Max).In(prefix),
			Units:      units.Symbol(prefix, sampleUnit),
		})
	}
	return out
}
