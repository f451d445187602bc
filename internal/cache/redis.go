// Package cache is a best-effort Redis read-through cache for order-book
// and ticker snapshots. It never participates in the core's consistency
// domain: a cache miss or a Redis outage degrades to "serve straight from
// the matcher" rather than an error.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hft-exchange/lightning/internal/domain"
)

type RedisCache struct {
	client *redis.Client
	ctx context.Context
}

func NewRedisCache(url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, ctx: ctx}, nil
}

func bookKey(symbolID int32) string { return fmt.Sprintf("orderbook:%d", symbolID) }
func tickerKey(symbolID int32) string { return fmt.Sprintf("ticker:%d", symbolID) }

func (r *RedisCache) CacheOrderBook(snapshot domain.BookSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal order book: %w", err)
	}
	return r.client.Set(r.ctx, bookKey(snapshot.SymbolID), data, 5*time.Second).Err()
}

func (r *RedisCache) GetOrderBook(symbolID int32) (*domain.BookSnapshot, error) {
	data, err := r.client.Get(r.ctx, bookKey(symbolID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order book: %w", err)
	}
	var snapshot domain.BookSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order book: %w", err)
	}
	return &snapshot, nil
}

func (r *RedisCache) CacheTicker(ticker domain.Ticker) error {
	data, err := json.Marshal(ticker)
	if err != nil {
		return fmt.Errorf("failed to marshal ticker: %w", err)
	}
	return r.client.Set(r.ctx, tickerKey(ticker.SymbolID), data, 10*time.Second).Err()
}

func (r *RedisCache) GetTicker(symbolID int32) (*domain.Ticker, error) {
	data, err := r.client.Get(r.ctx, tickerKey(symbolID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ticker: %w", err)
	}
	var ticker domain.Ticker
	if err := json.Unmarshal(data, &ticker); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticker: %w", err)
	}
	return &ticker, nil
}

func (r *RedisCache) PublishTrade(trade domain.TradeView) error {
	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}
	channel := fmt.Sprintf("trades:%d", trade.SymbolID)
	return r.client.Publish(r.ctx, channel, data).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
