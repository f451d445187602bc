package ledger

import (
	"fmt"

	"github.com/hft-exchange/lightning/internal/domain"
)

// SaveTrade inserts one trade row. Call it from the sink's writer goroutine
// only; it is not safe to call concurrently with the same *DB from
// multiple goroutines given the SQLite single-connection pool.
func (db *DB) SaveTrade(t domain.TradeView) error {
	_, err := db.Exec(
		`INSERT INTO trades
			(id, symbol_id, buy_order_id, sell_order_id, buy_account_id, sell_account_id, price, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		fmt.Sprintf("%d", t.ID), t.SymbolID, fmt.Sprintf("%d", t.BuyOrderID), fmt.Sprintf("%d", t.SellOrderID),
		t.BuyAccountID, t.SellAccountID, t.Price, t.Quantity, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ledger: failed to save trade: %w", err)
	}
	return nil
}

// RecentTradesBySymbol returns the most recent trades for one symbol, most
// recent first, the history backing the GetRecentTrades read.
func (db *DB) RecentTradesBySymbol(symbolID int32, limit int) ([]domain.TradeView, error) {
	rows, err := db.Query(
		`SELECT id, symbol_id, buy_order_id, sell_order_id, buy_account_id, sell_account_id, price, quantity, created_at
		FROM trades WHERE symbol_id = $1 ORDER BY created_at DESC LIMIT $2`,
		symbolID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to query trades by symbol: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// TradesByAccount returns the most recent trades an account took part in,
// on either side, most recent first.
func (db *DB) TradesByAccount(accountID int32, limit int) ([]domain.TradeView, error) {
	rows, err := db.Query(
		`SELECT id, symbol_id, buy_order_id, sell_order_id, buy_account_id, sell_account_id, price, quantity, created_at
		FROM trades WHERE buy_account_id = $1 OR sell_account_id = $1 ORDER BY created_at DESC LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to query trades by account: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

func scanTrades(rows interface {
	Next() bool
	Scan(dest...any) error
	Err() error
}) ([]domain.TradeView, error) {
	var trades []domain.TradeView
	for rows.Next() {
		var t domain.TradeView
		var id, buyOrderID, sellOrderID string
		if err := rows.Scan(&id, &t.SymbolID, &buyOrderID, &sellOrderID, &t.BuyAccountID, &t.SellAccountID, &t.Price, &t.Quantity, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: failed to scan trade row: %w", err)
		}
		if _, err := fmt.Sscanf(id, "%d", &t.ID); err != nil {
			return nil, fmt.Errorf("ledger: malformed trade id %q: %w", id, err)
		}
		if _, err := fmt.Sscanf(buyOrderID, "%d", &t.BuyOrderID); err != nil {
			return nil, fmt.Errorf("ledger: malformed buy order id %q: %w", buyOrderID, err)
		}
		if _, err := fmt.Sscanf(sellOrderID, "%d", &t.SellOrderID); err != nil {
			return nil, fmt.Errorf("ledger: malformed sell order id %q: %w", sellOrderID, err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: error iterating trade rows: %w", err)
	}
	return trades, nil
}
