package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummary(t *testing.T) {
	t.Run("no changes", func(t *testing.T) {
		r := New("fetch_users_from_keycloak")
		r.Warn(nil, "something odd")
		assert.Equal(t, []string{"No changes made."}, r.Summary())
	})

	t.Run("pluralizes", func(t *testing.T) {
		r := New("fetch_users_from_keycloak")
		r.Inc(ActiveUpdated)
		r.Add(PeopleAdded, 3)
		r.Inc(KeycloakIDUpdated)
		r.Add(RampIDUpdated, 2)

		assert.Equal(t, []string{
			"Updated active status for 1 person.",
			"Updated Keycloak user ID for 1 person.",
			"Updated Ramp user IDs for 2 people.",
			"Added 3 people.",
		}, r.Summary())
	})

	t.Run("unknown counters are listed last", func(t *testing.T) {
		r := New("custom")
		r.Inc(PositionsAdded)
		r.Add(Counter("widgets"), 2)
		assert.Equal(t, []string{"Added 1 position.", "widgets: 2"}, r.Summary())
	})
}

func TestAddIgnoresZero(t *testing.T) {
	r := New("x")
	r.Add(PeopleAdded, 0)
	assert.Empty(t, r.Counters)
	assert.False(t, r.Changed())
}

func TestMerge(t *testing.T) {
	a := New("a")
	a.Inc(PeopleAdded)
	b := New("b")
	b.Add(PeopleAdded, 2)
	b.Warn(Ref(KindPerson, 7), "%s was not found in Apiary.", "George Burdell")

	a.Merge(b)
	a.Merge(nil)

	assert.Equal(t, 3, a.Count(PeopleAdded))
	assert.Equal(t, []Warning{{Message: "George Burdell was not found in Apiary.", Ref: &EntityRef{Kind: "person", ID: "7"}}}, a.Warnings)
	assert.Equal(t, map[string]int{"people_added": 3}, a.CounterMap())
}
