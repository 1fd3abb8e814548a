package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/giantswarm/agentcatalog/internal/api"
)

func TestTally(t *testing.T) {
	tally := NewTally()
	and := Entry{ID: "and", Size: 2, Method: api.SelectorMethodAnd}
	or := Entry{ID: "or", Size: 3, Method: api.SelectorMethodOr}

	tally.Hit(and)
	tally.Hit(or)
	assert.Equal(t, []string{"or"}, tally.Matches())

	tally.Hit(and)
	tally.Universal("all")
	assert.Equal(t, []string{"all", "and", "or"}, tally.Matches())
}

// tallyFor feeds the tally the way the store's pair index does: one hit per
// selector pair present on the resource, plus every empty selector.
func tallyFor(selectors map[string]Selector, resource map[string]string) []string {
	tally := NewTally()
	for id, s := range selectors {
		if s.Empty() {
			tally.Universal(id)
			continue
		}
		for key, value := range s.Labels {
			if v, ok := resource[key]; ok && v == value {
				tally.Hit(Entry{ID: id, Size: s.Size(), Method: s.Method})
			}
		}
	}
	return tally.Matches()
}

func TestTally_AgreesWithPredicate(t *testing.T) {
	selectors := map[string]Selector{
		"a": New(map[string]string{"os": "linux", "env": "prod"}, api.SelectorMethodAnd),
		"b": New(map[string]string{"os": "linux", "env": "prod"}, api.SelectorMethodOr),
		"c": New(map[string]string{"region": "iad"}, api.SelectorMethodAnd),
		"d": New(nil, api.SelectorMethodOr),
	}

	resources := []map[string]string{
		{"os": "linux", "env": "prod"},
		{"os": "linux"},
		{"os": "linux", "env": "staging"},
		{"region": "iad", "env": "prod"},
		{},
	}

	for _, res := range resources {
		want := []string{}
		for _, id := range []string{"a", "b", "c", "d"} {
			if selectors[id].Matches(res) {
				want = append(want, id)
			}
		}
		assert.Equal(t, want, tallyFor(selectors, res), "labels %v", res)
	}
}
