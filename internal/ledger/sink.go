package ledger

import (
	"github.com/rs/zerolog"

	"github.com/hft-exchange/lightning/internal/domain"
	"github.com/hft-exchange/lightning/internal/logging"
)

// TradeSink is the async, best-effort writer fed by the matcher's trade
// observer hook (router.Dispatcher.SetTradeObserver). It never blocks the
// matcher goroutine that produced the trade: a full queue drops the row
// and logs a warning rather than applying backpressure to the core.
type TradeSink struct {
	db *DB
	queue chan domain.TradeView
	log zerolog.Logger
}

// NewTradeSink wraps db with a buffered queue of the given capacity.
func NewTradeSink(db *DB, buffer int) *TradeSink {
	return &TradeSink{
		db: db,
		queue: make(chan domain.TradeView, buffer),
		log: logging.Base.With().Str("component", "ledger").Logger(),
	}
}

// Observe is the func(domain.Trade) the edge bootstrap passes to
// router.Dispatcher.SetTradeObserver. It is called synchronously from
// whichever matcher shard produced the trade, so it must never block.
func (s *TradeSink) Observe(t domain.Trade) {
	select {
	case s.queue <- domain.NewTradeView(t):
	default:
		s.log.Warn().Uint64("trade_id", t.ID).Msg("ledger queue full, dropping trade record")
	}
}

// Run drains the queue and persists each trade, one at a time, until dying
// is closed. Call it in its own goroutine at bootstrap.
func (s *TradeSink) Run(dying <-chan struct{}) {
	for {
		select {
		case <-dying:
			return
		case v := <-s.queue:
			if err := s.db.SaveTrade(v); err != nil {
				s.log.Error().Err(err).Uint64("trade_id", v.ID).Msg("failed to persist trade")
			}
		}
	}
}
