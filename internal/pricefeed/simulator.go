// Package pricefeed is a demo component, grounded on the prior
// implementation's price simulator: it drives a synthetic random walk per
// symbol so internal/bot has something to quote around and
// internal/wsgateway has something to broadcast. It never touches
// sequencer or matcher state and plays no part in the core's consistency
// domain.
package pricefeed

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hft-exchange/lightning/internal/config"
	"github.com/hft-exchange/lightning/internal/domain"
	"github.com/hft-exchange/lightning/internal/logging"
)

// UpdateHandler is notified with the new read-model ticker after each tick.
type UpdateHandler func(domain.Ticker)

// Simulator drives one geometric-Brownian-motion random walk per symbol,
// clamped to a 5% band per tick so demo prices never jump unrealistically.
type Simulator struct {
	registry *config.Registry
	interval time.Duration

	mu sync.RWMutex
	prices map[int32]float64
	highs map[int32]float64
	lows map[int32]float64
	handler UpdateHandler

	stop chan struct{}
	log zerolog.Logger
}

// New builds a Simulator seeded with a starting price per symbol. Symbols
// absent from seed start at 100.
func New(registry *config.Registry, seed map[int32]decimal.Decimal, interval time.Duration) *Simulator {
	prices := make(map[int32]float64)
	highs := make(map[int32]float64)
	lows := make(map[int32]float64)
	for _, sym := range registry.Symbols() {
		p := 100.0
		if v, ok := seed[sym.ID]; ok {
			p, _ = v.Float64()
		}
		prices[sym.ID] = p
		highs[sym.ID] = p
		lows[sym.ID] = p
	}
	return &Simulator{
		registry: registry,
		interval: interval,
		prices: prices,
		highs: highs,
		lows: lows,
		stop: make(chan struct{}),
		log: logging.Base.With().Str("component", "pricefeed").Logger(),
	}
}

// SetUpdateHandler registers the callback invoked after every tick, from
// the simulator's own goroutine.
func (s *Simulator) SetUpdateHandler(h UpdateHandler) { s.handler = h }

// Start launches one goroutine per configured symbol.
func (s *Simulator) Start() {
	for _, sym := range s.registry.Symbols() {
		go s.simulate(sym.ID)
	}
	s.log.Info().Int("symbols", len(s.registry.Symbols())).Msg("price simulator started")
}

// Stop halts every symbol's random walk goroutine.
func (s *Simulator) Stop() { close(s.stop) }

func (s *Simulator) simulate(symbolID int32) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	const volatility = 0.02

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			current := s.prices[symbolID]

			dt := s.interval.Hours()
			shock := rand.NormFloat64()
			change := current * volatility * math.Sqrt(dt) * shock
			next := current + change

			if next < current*0.95 {
				next = current * 0.95
			}
			if next > current*1.05 {
				next = current * 1.05
			}
			if next <= 0 {
				next = current
			}

			s.prices[symbolID] = next
			if next > s.highs[symbolID] {
				s.highs[symbolID] = next
			}
			if next < s.lows[symbolID] {
				s.lows[symbolID] = next
			}
			high, low := s.highs[symbolID], s.lows[symbolID]
			s.mu.Unlock()

			changePct := 0.0
			if baseline := (high + low) / 2; baseline > 0 {
				changePct = ((next - baseline) / baseline) * 100
			}

			view := domain.Ticker{
				SymbolID: symbolID,
				Price: decimal.NewFromFloat(next).StringFixed(2),
				High24h: decimal.NewFromFloat(high).StringFixed(2),
				Low24h: decimal.NewFromFloat(low).StringFixed(2),
				Volume24h: "0",
				Change24h: decimal.NewFromFloat(changePct).StringFixed(4),
				UpdatedAt: time.Now().UTC(),
			}
			if s.handler != nil {
				s.handler(view)
			}
		}
	}
}

// CurrentPrice returns the simulator's latest price for a symbol, the
// quoting input for internal/bot's market maker.
func (s *Simulator) CurrentPrice(symbolID int32) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return decimal.NewFromFloat(s.prices[symbolID])
}
