package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpalmerr/gnos/internal/facts"
)

const seedYAML = `
store: primary
subjects:
  - subject: gnos:map
    facts:
      gnos:poll_interval: 10
      gnos:network: "<devices:core-1>"
      gnos:tag: [lab, east]
  - subject: devices:core-1
    facts:
      gnos:name: core-1
      gnos:load: 0.5
      gnos:managed: true
`

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)

	assert.Equal(t, "primary", seed.Store)
	assert.Equal(t, []facts.Fact{
		{Subject: "gnos:map", Predicate: "gnos:poll_interval", Object: facts.Int(10)},
		{Subject: "gnos:map", Predicate: "gnos:network", Object: facts.IRI("devices:core-1")},
		{Subject: "gnos:map", Predicate: "gnos:tag", Object: facts.String("lab")},
		{Subject: "gnos:map", Predicate: "gnos:tag", Object: facts.String("east")},
		{Subject: "devices:core-1", Predicate: "gnos:name", Object: facts.String("core-1")},
		{Subject: "devices:core-1", Predicate: "gnos:load", Object: facts.Float(0.5)},
		{Subject: "devices:core-1", Predicate: "gnos:managed", Object: facts.Bool(true)},
	}, seed.Facts)
}

func TestParseSeed_DefaultStore(t *testing.T) {
	seed, err := ParseSeed([]byte("subjects: []\n"))
	require.NoError(t, err)
	assert.Equal(t, PrimaryStore, seed.Store)
	assert.Empty(t, seed.Facts)
}

func TestParseSeed_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"invalid yaml", "subjects: [", "failed to parse seed YAML"},
		{"missing subject", "subjects:\n  - facts: {a: 1}\n", "subject is required"},
		{"facts not a mapping", "subjects:\n  - subject: s\n    facts: [1]\n", "facts must be a mapping"},
		{"nested value", "subjects:\n  - subject: s\n    facts:\n      p: {x: 1}\n", "expected a scalar"},
		{"nan", "subjects:\n  - subject: s\n    facts:\n      p: .nan\n", "non-finite number"},
		{"infinity", "subjects:\n  - subject: s\n    facts:\n      p: [1, -.inf]\n", "non-finite number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeed([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	seed, err := LoadSeed(path)
	require.NoError(t, err)
	assert.Len(t, seed.Facts, 7)

	_, err = LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read seed file")
}

func TestSeed_UpdateIsIdempotent(t *testing.T) {
	seed, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)

	store := facts.NewStore("primary")
	update := seed.Update()

	assert.True(t, update(store, ""))
	assert.Equal(t, 7, store.Len())
	assert.False(t, update(store, ""), "applying the same seed twice changes nothing")
	assert.Equal(t, 7, store.Len())
}
