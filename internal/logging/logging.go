// Package logging centralizes the core's structured logging setup so every
// shard and edge component logs through the same zerolog configuration.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Base is the process-wide logger. Shards derive a child logger from it via
// For so every line carries its shard kind and index.
var Base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

// For returns a child logger tagged with the given shard kind ("sequencer"
// or "matcher") and shard index, matching the per-shard ownership model.
func For(kind string, index int) zerolog.Logger {
	return Base.With().Str("shard_kind", kind).Int("shard_index", index).Logger()
}
