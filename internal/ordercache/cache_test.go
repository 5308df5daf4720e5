package ordercache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexcore/exec-core/pkg/ids"
	"github.com/vexcore/exec-core/pkg/model"
)

func TestCache_AddReturnsStablePointer(t *testing.T) {
	c := New()
	stored := c.Add(&model.Order{LocalID: ids.OrderLid("lid-1")})
	assert.Equal(t, ids.OrderLid("lid-1"), stored.LocalID)
	assert.Equal(t, 1, c.Len())
}

func TestCache_FindByEachIdentifier(t *testing.T) {
	c := New()
	c.Add(&model.Order{LocalID: "lid-1", ClientID: "cid-1", ServerID: "sid-1"})

	assert.NotNil(t, c.FindByLocalID("lid-1"))
	assert.NotNil(t, c.FindByClientID("cid-1"))
	assert.NotNil(t, c.FindByServerID("sid-1"))
	assert.Nil(t, c.FindByLocalID("missing"))
}

func TestSelector_MatchesInLocalThenClientThenServerPriority(t *testing.T) {
	order := &model.Order{LocalID: "lid-1", ClientID: "cid-1", ServerID: "sid-1"}

	assert.True(t, Selector{LocalID: "lid-1"}.Matches(order))
	assert.True(t, Selector{ClientID: "cid-1"}.Matches(order))
	assert.True(t, Selector{ServerID: "sid-1"}.Matches(order))
	assert.False(t, Selector{LocalID: "other"}.Matches(order))
	assert.False(t, Selector{LocalID: "other", ClientID: "cid-1"}.Matches(order), "a set LocalID decides alone")
	assert.True(t, Selector{ClientID: "cid-1", ServerID: "other"}.Matches(order), "a set ClientID decides before ServerID")
	assert.False(t, Selector{}.Matches(order))
}

func TestCache_RemoveDeletesMatchingOrders(t *testing.T) {
	c := New()
	c.Add(&model.Order{LocalID: "lid-1"})
	c.Add(&model.Order{LocalID: "lid-2"})

	c.Remove(Selector{LocalID: "lid-1"})

	require.Equal(t, 1, c.Len())
	assert.Nil(t, c.FindByLocalID("lid-1"))
	assert.NotNil(t, c.FindByLocalID("lid-2"))
}

func TestCache_RetainKeepsOnlyMatching(t *testing.T) {
	c := New()
	c.Add(&model.Order{LocalID: "lid-1", Status: model.StatusFilled})
	c.Add(&model.Order{LocalID: "lid-2", Status: model.StatusOpen})

	c.Retain(func(o *model.Order) bool { return o.Status == model.StatusOpen })

	require.Equal(t, 1, c.Len())
	assert.Equal(t, ids.OrderLid("lid-2"), c.orders[0].LocalID)
}

func TestCache_AtAndEach(t *testing.T) {
	c := New()
	c.Add(&model.Order{LocalID: "lid-1"})
	c.Add(&model.Order{LocalID: "lid-2"})

	o, ok := c.At(1)
	require.True(t, ok)
	assert.Equal(t, ids.OrderLid("lid-2"), o.LocalID)

	_, ok = c.At(5)
	assert.False(t, ok)

	seen := 0
	c.Each(func(*model.Order) { seen++ })
	assert.Equal(t, 2, seen)
}
