// Package instrument implements the process-wide Instrument Manager and
// Loader Registry described in spec §4.1: a shared, read-mostly directory
// mapping venue symbols to normalized InstrumentDetails, populated once
// per (exchange, network) and never mutated after publication.
package instrument

import (
	"github.com/vexcore/exec-core/pkg/ids"
	"github.com/vexcore/exec-core/pkg/model"
)

// Manager is a shared, read-mostly instrument directory. It is populated
// by its owning loader via Add, then handed to the Registry which
// publishes it to every caller of the same (exchange, network) key;
// nothing mutates it after that point.
type Manager struct {
	bySymbolIdx map[model.InstrumentSymbol]*model.InstrumentDetails
	byVenueID   map[venueIDKey]*model.InstrumentDetails
	byTriple    map[tripleKey]*model.InstrumentDetails
	byAsset     map[assetKey]*model.InstrumentDetails
}

type venueIDKey struct {
	Exchange ids.Exchange
	VenueID  string
}

type tripleKey struct {
	Network ids.Network
	Base    string
	Quote   string
	Kind    model.InstrumentKind
}

type assetKey struct {
	Location ids.Exchange
	Asset    string
}

// New returns an empty Manager ready for Add calls by its loader. Callers
// outside the owning loader must treat the result as read-only once the
// loader returns it to the Registry.
func New() *Manager {
	return &Manager{
		bySymbolIdx: make(map[model.InstrumentSymbol]*model.InstrumentDetails),
		byVenueID:   make(map[venueIDKey]*model.InstrumentDetails),
		byTriple:    make(map[tripleKey]*model.InstrumentDetails),
		byAsset:     make(map[assetKey]*model.InstrumentDetails),
	}
}

// Add registers one instrument under every lookup index. Only the loader
// that owns this Manager during construction should call Add.
func (m *Manager) Add(network ids.Network, d *model.InstrumentDetails) {
	exch, _ := d.GetExchange()
	m.bySymbolIdx[model.InstrumentSymbol{Exchange: exch, Symbol: d.VenueSymbol}] = d
	if d.VenueID != "" {
		m.byVenueID[venueIDKey{Exchange: exch, VenueID: d.VenueID}] = d
	}
	if d.Tag == model.CodeSimple {
		m.byTriple[tripleKey{Network: network, Base: d.Base, Quote: d.Quote, Kind: d.Kind}] = d
	}
	if d.Tag == model.CodeAsset {
		m.byAsset[assetKey{Location: d.Location, Asset: d.Asset}] = d
	}
}

// BySymbol looks up an instrument by its venue-native symbol.
func (m *Manager) BySymbol(sym model.InstrumentSymbol) (*model.InstrumentDetails, bool) {
	d, ok := m.bySymbolIdx[sym]
	return d, ok
}

// ByVenueID looks up an instrument by (exchange, venue-assigned id).
func (m *Manager) ByVenueID(exchange ids.Exchange, venueID string) (*model.InstrumentDetails, bool) {
	d, ok := m.byVenueID[venueIDKey{Exchange: exchange, VenueID: venueID}]
	return d, ok
}

// ByTriple looks up an instrument by (network, base, quote, kind).
func (m *Manager) ByTriple(network ids.Network, base, quote string, kind model.InstrumentKind) (*model.InstrumentDetails, bool) {
	d, ok := m.byTriple[tripleKey{Network: network, Base: base, Quote: quote, Kind: kind}]
	return d, ok
}

// ByAsset looks up an asset-only instrument by (location, asset).
func (m *Manager) ByAsset(location ids.Exchange, asset string) (*model.InstrumentDetails, bool) {
	d, ok := m.byAsset[assetKey{Location: location, Asset: asset}]
	return d, ok
}
