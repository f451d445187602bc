// Package config holds the process-wide, read-only currency and symbol
// tables every shard needs. A Registry is built once at bootstrap, before
// any shard starts, and is never mutated afterward — it is the one piece
// of state every shard is allowed to share.
package config

import (
	"fmt"
)

// Currency is the { id, name } currency record.
type Currency struct {
	ID int32
	Name string
}

// Symbol is the trading pair: { id, name, base, quote }.
type Symbol struct {
	ID int32
	Name string
	Base int32 // base currency id
	Quote int32 // quote currency id
}

// Registry is the immutable currency/symbol table. Zero value is not
// usable; build one with New.
type Registry struct {
	currencies map[int32]Currency
	symbols map[int32]Symbol
}

// New builds a Registry from the given currencies and symbols. Every
// symbol's base and quote must reference a known currency; New returns an
// error rather than building a half-valid registry.
func New(currencies []Currency, symbols []Symbol) (*Registry, error) {
	r := &Registry{
		currencies: make(map[int32]Currency, len(currencies)),
		symbols: make(map[int32]Symbol, len(symbols)),
	}
	for _, c := range currencies {
		r.currencies[c.ID] = c
	}
	for _, s := range symbols {
		if _, ok := r.currencies[s.Base]; !ok {
			return nil, fmt.Errorf("symbol %d (%s): unknown base currency %d", s.ID, s.Name, s.Base)
		}
		if _, ok := r.currencies[s.Quote]; !ok {
			return nil, fmt.Errorf("symbol %d (%s): unknown quote currency %d", s.ID, s.Name, s.Quote)
		}
		r.symbols[s.ID] = s
	}
	return r, nil
}

// Currency resolves a currency id in O(1).
func (r *Registry) Currency(id int32) (Currency, bool) {
	c, ok := r.currencies[id]
	return c, ok
}

// Symbol resolves symbol_id -> (base, quote) in O(1),
func (r *Registry) Symbol(id int32) (Symbol, bool) {
	s, ok := r.symbols[id]
	return s, ok
}

// Symbols returns every configured symbol, e.g. for bootstrap fan-out when
// starting demo bots or benches.
func (r *Registry) Symbols() []Symbol {
	out := make([]Symbol, 0, len(r.symbols))
	for _, s := range r.symbols {
		out = append(out, s)
	}
	return out
}
