package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/hft-exchange/lightning/internal/config"
	"github.com/hft-exchange/lightning/internal/domain"
	"github.com/hft-exchange/lightning/internal/ledger"
	"github.com/hft-exchange/lightning/internal/logging"
	"github.com/hft-exchange/lightning/internal/proto"
	"github.com/hft-exchange/lightning/internal/router"
	"github.com/hft-exchange/lightning/internal/shard"
)

// Handler is the REST edge described in it turns an HTTP
// request into one of the request structs in internal/proto, hands it to
// the Dispatcher, blocks on the one-shot reply channel, and renders the
// result. It never touches shard state directly.
type Handler struct {
	dispatcher *router.Dispatcher
	registry *config.Registry
	ledgerDB *ledger.DB // optional; nil disables trade-history endpoints
	log zerolog.Logger
}

func NewHandler(dispatcher *router.Dispatcher, registry *config.Registry, ledgerDB *ledger.DB) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		registry: registry,
		ledgerDB: ledgerDB,
		log: logging.Base.With().Str("component", "api").Logger(),
	}
}

// Response is the envelope wrapping every handler reply, success or not.
type Response struct {
	Success bool `json:"success"`
	Data interface{} `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func httpStatusFor(code int) int {
	if code == 0 {
		return http.StatusOK
	}
	return code
}

func (h *Handler) requestID() string { return uuid.NewString() }

// --- GetAccount ---

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	accountID, err := strconv.Atoi(vars["accountId"])
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "invalid account id"})
		return
	}

	req := proto.GetAccountRequest{
		RequestID: h.requestID(),
		AccountID: int32(accountID),
		Reply: shard.NewReply[proto.GetAccountResult](),
	}
	if currencyStr := r.URL.Query().Get("currency_id"); currencyStr != "" {
		if c, err := strconv.Atoi(currencyStr); err == nil {
			cid := int32(c)
			req.CurrencyID = &cid
		}
	}

	h.dispatcher.RouteGetAccount(req)
	res := <-req.Reply

	respondJSON(w, httpStatusFor(res.Code), Response{
		Success: res.Code == 0,
		Data: res.Balances,
		Error: res.Message,
	})
}

// --- Increase / Decrease ---

type balanceOpRequest struct {
	CurrencyID int32 `json:"currency_id"`
	Amount string `json:"amount"`
}

func (h *Handler) Increase(w http.ResponseWriter, r *http.Request) {
	h.balanceOp(w, r, func(req proto.IncreaseRequest) { h.dispatcher.RouteIncrease(req) })
}

func (h *Handler) Decrease(w http.ResponseWriter, r *http.Request) {
	h.balanceOp(w, r, func(req proto.IncreaseRequest) {
		h.dispatcher.RouteDecrease(proto.DecreaseRequest(req))
	})
}

func (h *Handler) balanceOp(w http.ResponseWriter, r *http.Request, dispatch func(proto.IncreaseRequest)) {
	vars := mux.Vars(r)
	accountID, err := strconv.Atoi(vars["accountId"])
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "invalid account id"})
		return
	}

	var body balanceOpRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	req := proto.IncreaseRequest{
		RequestID: h.requestID(),
		AccountID: int32(accountID),
		CurrencyID: body.CurrencyID,
		Amount: body.Amount,
		Reply: shard.NewReply[proto.BalanceOpResult](),
	}
	dispatch(req)
	res := <-req.Reply

	respondJSON(w, httpStatusFor(res.Code), Response{
		Success: res.Code == 0,
		Data: res.Balance,
		Error: res.Message,
	})
}

// --- PlaceOrder / CancelOrder ---

type placeOrderRequest struct {
	AccountID int32 `json:"account_id"`
	SymbolID int32 `json:"symbol_id"`
	Kind string `json:"kind"` // "limit" | "market"
	Side string `json:"side"` // "bid" | "ask"
	Price string `json:"price,omitempty"`
	Quantity string `json:"quantity"`
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var body placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	kind, ok := parseOrderKind(body.Kind)
	if !ok {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "invalid order kind"})
		return
	}
	side, ok := parseOrderSide(body.Side)
	if !ok {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "invalid order side"})
		return
	}

	req := proto.PlaceOrderRequest{
		RequestID: h.requestID(),
		SymbolID: body.SymbolID,
		AccountID: body.AccountID,
		Kind: kind,
		Side: side,
		Price: body.Price,
		Quantity: body.Quantity,
		Reply: shard.NewReply[proto.PlaceOrderResult](),
	}
	h.dispatcher.RoutePlaceOrder(req)
	res := <-req.Reply

	respondJSON(w, httpStatusFor(res.Code), Response{
		Success: res.Code == 0,
		Data: map[string]any{"order_id": res.OrderID},
		Error: res.Message,
	})
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orderID, err := strconv.ParseUint(vars["orderId"], 10, 64)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "invalid order id"})
		return
	}
	accountID, err := strconv.Atoi(r.URL.Query().Get("account_id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "account_id is required"})
		return
	}
	symbolID, err := strconv.Atoi(r.URL.Query().Get("symbol_id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "symbol_id is required"})
		return
	}

	req := proto.CancelOrderRequest{
		RequestID: h.requestID(),
		SymbolID: int32(symbolID),
		AccountID: int32(accountID),
		OrderID: orderID,
		Reply: shard.NewReply[proto.CancelOrderResult](),
	}
	h.dispatcher.RouteCancelOrder(req)
	res := <-req.Reply

	respondJSON(w, httpStatusFor(res.Code), Response{
		Success: res.Code == 0,
		Data: map[string]any{"order_id": res.OrderID, "cancelled_quantity": res.CancelledQuantity.String()},
		Error: res.Message,
	})
}

// --- GetOrderBook ---

func (h *Handler) GetOrderBook(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbolID, err := strconv.Atoi(vars["symbolId"])
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "invalid symbol id"})
		return
	}

	levels := 20
	if l := r.URL.Query().Get("levels"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			levels = n
		}
	}

	req := proto.GetOrderBookRequest{
		RequestID: h.requestID(),
		SymbolID: int32(symbolID),
		Levels: levels,
		Reply: shard.NewReply[proto.GetOrderBookResult](),
	}
	h.dispatcher.RouteGetOrderBook(req)
	res := <-req.Reply

	respondJSON(w, http.StatusOK, Response{Success: true, Data: res})
}

// --- Trade history (ledger, supplement; best-effort, not authoritative) ---

func (h *Handler) GetRecentTrades(w http.ResponseWriter, r *http.Request) {
	if h.ledgerDB == nil {
		respondJSON(w, http.StatusOK, Response{Success: true, Data: []domain.TradeView{}})
		return
	}

	vars := mux.Vars(r)
	symbolID, err := strconv.Atoi(vars["symbolId"])
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "invalid symbol id"})
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	trades, err := h.ledgerDB.RecentTradesBySymbol(int32(symbolID), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to query recent trades")
		respondJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "failed to query trade history"})
		return
	}

	respondJSON(w, http.StatusOK, Response{Success: true, Data: trades})
}

func (h *Handler) GetAccountTrades(w http.ResponseWriter, r *http.Request) {
	if h.ledgerDB == nil {
		respondJSON(w, http.StatusOK, Response{Success: true, Data: []domain.TradeView{}})
		return
	}

	vars := mux.Vars(r)
	accountID, err := strconv.Atoi(vars["accountId"])
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "invalid account id"})
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	trades, err := h.ledgerDB.TradesByAccount(int32(accountID), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to query account trades")
		respondJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "failed to query trade history"})
		return
	}

	respondJSON(w, http.StatusOK, Response{Success: true, Data: trades})
}

// --- Static registry ---

func (h *Handler) GetSymbols(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, Response{Success: true, Data: h.registry.Symbols()})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, Response{Success: true, Data: map[string]string{"status": "healthy"}})
}

func parseOrderKind(s string) (domain.OrderKind, bool) {
	switch s {
	case "limit":
		return domain.KindLimit, true
	case "market":
		return domain.KindMarket, true
	default:
		return domain.OrderKind(0), false
	}
}

func parseOrderSide(s string) (domain.OrderSide, bool) {
	switch s {
	case "bid":
		return domain.SideBid, true
	case "ask":
		return domain.SideAsk, true
	default:
		return domain.OrderSide(0), false
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
