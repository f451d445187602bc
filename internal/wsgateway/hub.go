// Package wsgateway broadcasts trade, order-book, and ticker updates to
// connected websocket clients. It is pure edge plumbing built on
// gorilla/websocket: a Hub fans messages out to registered Clients, each
// running its own read/write pump goroutine pair.
package wsgateway

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hft-exchange/lightning/internal/domain"
	"github.com/hft-exchange/lightning/internal/logging"
)

// Hub fans broadcast messages out to every connected Client. It owns no
// core state; a dropped or slow client is disconnected rather than allowed
// to block the broadcast.
type Hub struct {
	clients map[*Client]bool
	broadcast chan []byte
	Register chan *Client
	Unregister chan *Client
	mu sync.RWMutex
	log zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		Register: make(chan *Client),
		Unregister: make(chan *Client),
		clients: make(map[*Client]bool),
		log: logging.Base.With().Str("component", "wsgateway").Logger(),
	}
}

// Run drives the hub's register/unregister/broadcast loop. Call it once,
// in its own goroutine, at bootstrap.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug().Int("clients", len(h.clients)).Msg("client connected")

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Debug().Int("clients", len(h.clients)).Msg("client disconnected")

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) publish(kind string, payload any) {
	envelope := struct {
		Type string `json:"type"`
		Data any `json:"data"`
	}{Type: kind, Data: payload}

	message, err := json.Marshal(envelope)
	if err != nil {
		h.log.Error().Err(err).Str("kind", kind).Msg("failed to marshal broadcast payload")
		return
	}
	h.broadcast <- message
}

// BroadcastTrade publishes a fill as soon as the matcher that produced it
// reports it (via the matcher trade observer hook).
func (h *Hub) BroadcastTrade(trade domain.Trade) { h.publish("trade", domain.NewTradeView(trade)) }

// BroadcastOrderBook publishes a depth snapshot for one symbol.
func (h *Hub) BroadcastOrderBook(snapshot domain.BookSnapshot) { h.publish("orderbook", snapshot) }

// BroadcastTicker publishes a ticker update from internal/pricefeed.
func (h *Hub) BroadcastTicker(ticker domain.Ticker) { h.publish("ticker", ticker) }

// ClientCount reports the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
