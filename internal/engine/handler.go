package engine

import (
	"errors"
	"net/http"
	"strings"

	"paperprop/internal/feed"
	"paperprop/internal/httputil"
	"paperprop/internal/types"

	"github.com/shopspring/decimal"
)

type Handler struct {
	hub  *Hub
	feed *feed.Feed
}

func NewHandler(hub *Hub, f *feed.Feed) *Handler {
	return &Handler{hub: hub, feed: f}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, ErrInsufficientMargin):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
}

type placeOrderRequest struct {
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Qty       int64  `json:"qty"`
	Price     string `json:"price"`
	TrigPrice string `json:"trig_price"`
	Kind      string `json:"kind"`
	Product   string `json:"product"`
}

func (h *Handler) Place(w http.ResponseWriter, r *http.Request, userID string) {
	var req placeOrderRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "symbol is required"})
		return
	}
	price := decimal.Zero
	if req.Price != "" {
		p, err := decimal.NewFromString(req.Price)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid price"})
			return
		}
		price = p
	}
	var trig *decimal.Decimal
	if req.TrigPrice != "" {
		t, err := decimal.NewFromString(req.TrigPrice)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid trig_price"})
			return
		}
		trig = &t
	}
	eng, err := h.hub.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := eng.PlaceOrder(r.Context(), OrderRequest{
		Symbol:    symbol,
		Side:      types.OrderSide(strings.ToUpper(req.Side)),
		Qty:       req.Qty,
		Price:     price,
		TrigPrice: trig,
		Kind:      types.OrderKind(strings.ToUpper(req.Kind)),
		Product:   types.ProductMode(strings.ToUpper(req.Product)),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request, userID string) {
	eng, err := h.hub.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	snap, err := eng.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap.Orders)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request, userID, orderID string) {
	eng, err := h.hub.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := eng.CancelOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

type modifyOrderRequest struct {
	Qty   int64  `json:"qty"`
	Price string `json:"price"`
	Kind  string `json:"kind"`
}

func (h *Handler) Modify(w http.ResponseWriter, r *http.Request, userID, orderID string) {
	var req modifyOrderRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid price"})
		return
	}
	eng, err := h.hub.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := eng.ModifyOrder(r.Context(), orderID, ModifyRequest{
		Qty:   req.Qty,
		Price: price,
		Kind:  types.OrderKind(strings.ToUpper(req.Kind)),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Funds(w http.ResponseWriter, r *http.Request, userID string) {
	eng, err := h.hub.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	snap, err := eng.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap.Funds)
}

func (h *Handler) Positions(w http.ResponseWriter, r *http.Request, userID string) {
	eng, err := h.hub.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	out, err := eng.Positions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) Account(w http.ResponseWriter, r *http.Request, userID string) {
	eng, err := h.hub.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	snap, err := eng.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

type squareOffRequest struct {
	Symbols []string `json:"symbols"`
}

// SquareOff closes the named net positions at market, or every open net
// position when no symbols are given.
func (h *Handler) SquareOff(w http.ResponseWriter, r *http.Request, userID string) {
	var req squareOffRequest
	if r.ContentLength != 0 {
		if err := httputil.ReadJSON(r, &req); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
			return
		}
	}
	for i := range req.Symbols {
		req.Symbols[i] = strings.ToUpper(strings.TrimSpace(req.Symbols[i]))
	}
	eng, err := h.hub.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := eng.SquareOff(r.Context(), req.Symbols)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Instruments(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.feed.Instruments())
}
