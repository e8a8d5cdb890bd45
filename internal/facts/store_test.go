package facts

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AddKeepsInsertionOrder(t *testing.T) {
	s := NewStore("primary")
	s.Add("gnos:map",
		Entry{"gnos:poll_interval", Int(10)},
		Entry{"gnos:title", String("lab")},
	)
	s.Add("devices:core", Entry{"gnos:style", String("router")})

	facts := s.Facts()
	require.Len(t, facts, 3)
	assert.Equal(t, "gnos:poll_interval", facts[0].Predicate)
	assert.Equal(t, "gnos:title", facts[1].Predicate)
	assert.Equal(t, "devices:core", facts[2].Subject)
}

func TestStore_Replace(t *testing.T) {
	s := NewStore("primary")

	assert.True(t, s.Replace("devices:a", "snmp:ttl", String("50")), "new pair is a change")
	assert.False(t, s.Replace("devices:a", "snmp:ttl", String("50")), "identical value is not a change")
	assert.True(t, s.Replace("devices:a", "snmp:ttl", String("75")))

	v, ok := s.Find("devices:a", "snmp:ttl")
	require.True(t, ok)
	assert.Equal(t, String("75"), v)
	assert.Equal(t, 1, s.Len())
}

func TestStore_ReplaceCollapsesDuplicates(t *testing.T) {
	s := NewStore("primary")
	s.Add("devices:a",
		Entry{"snmp:addr", String("10.0.0.1")},
		Entry{"snmp:name", String("a")},
		Entry{"snmp:addr", String("10.0.0.2")},
	)

	assert.True(t, s.Replace("devices:a", "snmp:addr", String("10.0.0.1")),
		"collapsing two facts into one is a change")

	facts := s.Facts()
	require.Len(t, facts, 2)
	assert.Equal(t, Fact{"devices:a", "snmp:addr", String("10.0.0.1")}, facts[0])
	assert.Equal(t, "snmp:name", facts[1].Predicate)
}

func TestStore_RemoveAndClear(t *testing.T) {
	s := NewStore("primary")
	s.Add("a", Entry{"p", Int(1)}, Entry{"q", Int(2)})

	assert.True(t, s.Remove("a", "p"))
	assert.False(t, s.Remove("a", "p"))
	assert.Equal(t, 1, s.Len())

	assert.True(t, s.Clear())
	assert.False(t, s.Clear())
	assert.Equal(t, 0, s.Len())
}

func TestStore_BlankNamesAreNeverReused(t *testing.T) {
	s := NewStore("alerts")
	first := s.BlankName("alert")
	s.Clear()
	second := s.BlankName("alert")

	assert.Equal(t, "_:alert-1", first)
	assert.Equal(t, "_:alert-2", second)
}

func TestValue_Equality(t *testing.T) {
	assert.Equal(t, String("x"), String("x"))
	assert.NotEqual(t, String("x"), IRI("x"), "kind participates in equality")
	assert.NotEqual(t, Int(1), Float(1))

	ts := time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC)
	assert.Equal(t, DateTime(ts), DateTime(ts.Add(100*time.Millisecond)), "dateTimes are second precision")
}

func TestValue_MarshalJSON(t *testing.T) {
	row := map[string]Value{
		"a": IRI("devices:core"),
		"b": String("50"),
		"c": Int(7),
		"d": Float(0.5),
		"e": Bool(true),
		"f": DateTime(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"a":"devices:core","b":"50","c":7,"d":0.5,"e":true,"f":"2024-03-01T12:00:00Z"}`,
		string(data))
}

func TestFromNative(t *testing.T) {
	v, err := FromNative("<devices:core>")
	require.NoError(t, err)
	assert.Equal(t, IRI("devices:core"), v)

	v, err = FromNative(3)
	require.NoError(t, err)
	assert.Equal(t, Int(3), v)

	_, err = FromNative([]string{"x"})
	assert.Error(t, err)

	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err = FromNative(f)
		assert.ErrorContains(t, err, "non-finite", "FromNative(%v)", f)
	}
}
