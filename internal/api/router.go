package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/hft-exchange/lightning/internal/wsgateway"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize: 1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

func NewRouter(handler *Handler, hub *wsgateway.Hub) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API routes
	api := r.PathPrefix("/api/v1").Subrouter()

	// Accounts
	api.HandleFunc("/accounts/{accountId}", handler.GetAccount).Methods("GET")
	api.HandleFunc("/accounts/{accountId}/increase", handler.Increase).Methods("POST")
	api.HandleFunc("/accounts/{accountId}/decrease", handler.Decrease).Methods("POST")
	api.HandleFunc("/accounts/{accountId}/trades", handler.GetAccountTrades).Methods("GET")

	// Orders
	api.HandleFunc("/orders", handler.PlaceOrder).Methods("POST")
	api.HandleFunc("/orders/{orderId}", handler.CancelOrder).Methods("DELETE")

	// Order book and trade history
	api.HandleFunc("/symbols/{symbolId}/orderbook", handler.GetOrderBook).Methods("GET")
	api.HandleFunc("/symbols/{symbolId}/trades", handler.GetRecentTrades).Methods("GET")

	// Symbols
	api.HandleFunc("/symbols", handler.GetSymbols).Methods("GET")

	// WebSocket
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(hub, w, r)
	})

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		AllowCredentials: true,
	})

	return c.Handler(r)
}

func handleWebSocket(hub *wsgateway.Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := wsgateway.NewClient(hub, conn)
	hub.Register <- client

	client.Start()
}
