// Package ordercache implements the Order Cache of spec §4.2: the
// in-memory table of live orders keyed by any of the three order
// identifiers. A Cache is owned by exactly one execution session per
// venue — it is not safe for concurrent mutation from multiple
// goroutines, matching the cooperative single-task-per-session model of
// §5.
package ordercache

import (
	"github.com/vexcore/exec-core/pkg/ids"
	"github.com/vexcore/exec-core/pkg/model"
)

// Selector is the equivalence-selector contract used to look an order up
// by any subset of its three identifiers. A zero field is treated as "not
// specified" and is not matched against.
type Selector struct {
	LocalID  ids.OrderLid
	ClientID ids.OrderCid
	ServerID ids.OrderSid
}

// Matches reports whether o satisfies the selector: local ID first, then
// client ID, then server ID, per the identification rule in §4.3.
func (s Selector) Matches(o *model.Order) bool {
	if !s.LocalID.Empty() {
		return o.LocalID == s.LocalID
	}
	if !s.ClientID.Empty() {
		return o.ClientID == s.ClientID
	}
	if !s.ServerID.Empty() {
		return o.ServerID == s.ServerID
	}
	return false
}

// Cache is the canonical, single-owner table of live orders.
type Cache struct {
	orders []*model.Order
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{}
}

// Add inserts order, which must be unique by LocalID. Returns the stored
// pointer, which is the one all subsequent lookups and mutations operate
// on.
func (c *Cache) Add(order *model.Order) *model.Order {
	c.orders = append(c.orders, order)
	return c.orders[len(c.orders)-1]
}

// Find returns the first order matching selector, or nil.
func (c *Cache) Find(selector Selector) *model.Order {
	for _, o := range c.orders {
		if selector.Matches(o) {
			return o
		}
	}
	return nil
}

// FindByLocalID is a convenience wrapper around Find.
func (c *Cache) FindByLocalID(id ids.OrderLid) *model.Order {
	return c.Find(Selector{LocalID: id})
}

// FindByClientID is a convenience wrapper around Find.
func (c *Cache) FindByClientID(id ids.OrderCid) *model.Order {
	return c.Find(Selector{ClientID: id})
}

// FindByServerID is a convenience wrapper around Find.
func (c *Cache) FindByServerID(id ids.OrderSid) *model.Order {
	return c.Find(Selector{ServerID: id})
}

// Remove deletes every order matching selector.
func (c *Cache) Remove(selector Selector) {
	c.Retain(func(o *model.Order) bool { return !selector.Matches(o) })
}

// At returns the order at index for compact, index-based iteration by
// consumers that want to avoid allocating a slice copy (§4.2).
func (c *Cache) At(index int) (*model.Order, bool) {
	if index < 0 || index >= len(c.orders) {
		return nil, false
	}
	return c.orders[index], true
}

// Len returns the number of cached orders.
func (c *Cache) Len() int { return len(c.orders) }

// Each calls fn for every cached order, in insertion order. fn may mutate
// the order in place but must not add or remove entries.
func (c *Cache) Each(fn func(*model.Order)) {
	for _, o := range c.orders {
		fn(o)
	}
}

// Retain keeps only the orders for which keep returns true, pruning the
// rest (used for reaping terminal-and-settled orders after their grace
// period, §3).
func (c *Cache) Retain(keep func(*model.Order) bool) {
	filtered := c.orders[:0]
	for _, o := range c.orders {
		if keep(o) {
			filtered = append(filtered, o)
		}
	}
	c.orders = filtered
}
