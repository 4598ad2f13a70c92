package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/rentalhub/internal/middleware"
	"github.com/mmeshcher/rentalhub/internal/model"
	"github.com/mmeshcher/rentalhub/internal/service"
)

type orderItemRequest struct {
	Kind     string           `json:"kind"`
	ID       int64            `json:"id"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Duration int              `json:"duration"`
	Quantity int              `json:"quantity"`
}

type guestInfoRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Whatsapp string `json:"whatsapp"`
}

type createOrderRequest struct {
	Item            *orderItemRequest `json:"item"`
	Currency        string            `json:"currency"`
	PaymentMethod   string            `json:"paymentMethod"`
	DeliveryAddress string            `json:"deliveryAddress"`
	Notes           string            `json:"notes"`
	GuestInfo       *guestInfoRequest `json:"guestInfo"`
}

// input переводит тело запроса во входные данные сервиса. Цена из запроса не используется.
func (req createOrderRequest) input() service.CreateOrderInput {
	in := service.CreateOrderInput{
		Currency:        req.Currency,
		PaymentMethod:   req.PaymentMethod,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
	}
	if req.Item != nil {
		in.Item = &service.OrderItem{
			Kind:     model.ItemKind(strings.ToUpper(strings.TrimSpace(req.Item.Kind))),
			ID:       req.Item.ID,
			Quantity: req.Item.Quantity,
			Duration: req.Item.Duration,
		}
	}
	if req.GuestInfo != nil {
		in.Guest = &model.GuestInfo{
			Name:     strings.TrimSpace(req.GuestInfo.Name),
			Email:    strings.TrimSpace(req.GuestInfo.Email),
			Whatsapp: strings.TrimSpace(req.GuestInfo.Whatsapp),
		}
	}
	return in
}

type orderResponse struct {
	Order   *model.Order   `json:"order"`
	Invoice *model.Invoice `json:"invoice,omitempty"`
}

// CreateOrder оформляет заказ. Доступен без токена: в этом случае обязательны контакты гостя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var userID *int64
	if p, ok := middleware.PrincipalFromContext(r.Context()); ok {
		id := p.UserID
		userID = &id
	}

	res, err := h.service.CreateOrder(r.Context(), userID, req.input())
	if err != nil {
		h.handleError(w, r, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, orderResponse{Order: res.Order, Invoice: res.Invoice})
}

// MyOrders возвращает заказы текущего пользователя.
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	orders, err := h.service.MyOrders(r.Context(), p.UserID)
	if err != nil {
		h.handleError(w, r, "get my orders", err)
		return
	}

	writeJSON(w, http.StatusOK, emptyIfNil(orders))
}

// ListOrders возвращает все заказы для администратора.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		h.handleError(w, r, "list orders", err)
		return
	}

	writeJSON(w, http.StatusOK, emptyIfNil(orders))
}

type orderStatusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus изменяет статус заказа.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req orderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.service.UpdateOrderStatus(r.Context(), p.UserID, orderID, req.Status)
	if err != nil {
		h.handleError(w, r, "update order status", err)
		return
	}

	writeJSON(w, http.StatusOK, orderResponse{Order: o})
}

type confirmPaymentRequest struct {
	PaymentMethod       string           `json:"paymentMethod"`
	DeliveryFeeOverride *decimal.Decimal `json:"deliveryFeeOverride"`
}

type confirmPaymentResponse struct {
	Success    bool           `json:"success"`
	Order      *model.Order   `json:"order"`
	Invoice    *model.Invoice `json:"invoice"`
	EmailsSent int            `json:"emailsSent"`
}

// ConfirmPayment подтверждает оплату заказа администратором.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req confirmPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.service.ConfirmPayment(r.Context(), p.UserID, orderID, service.ConfirmPaymentInput{
		PaymentMethod:       req.PaymentMethod,
		DeliveryFeeOverride: req.DeliveryFeeOverride,
	})
	if err != nil {
		h.handleError(w, r, "confirm payment", err)
		return
	}

	writeJSON(w, http.StatusOK, confirmPaymentResponse{
		Success:    true,
		Order:      res.Order,
		Invoice:    res.Invoice,
		EmailsSent: res.EmailsSent,
	})
}

type manualInvoiceRequest struct {
	Type          string              `json:"type"`
	UserID        *int64              `json:"userId"`
	GuestName     string              `json:"guestName"`
	GuestEmail    string              `json:"guestEmail"`
	GuestWhatsapp string              `json:"guestWhatsapp"`
	GuestAddress  string              `json:"guestAddress"`
	Amount        decimal.Decimal     `json:"amount"`
	Tax           decimal.Decimal     `json:"tax"`
	DeliveryFee   decimal.Decimal     `json:"deliveryFee"`
	Currency      string              `json:"currency"`
	Items         []model.InvoiceLine `json:"items"`
}

// CreateInvoice создаёт счёт вручную.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req manualInvoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inv, err := h.service.CreateManualInvoice(r.Context(), p.UserID, service.ManualInvoiceInput{
		Type:          req.Type,
		UserID:        req.UserID,
		GuestName:     req.GuestName,
		GuestEmail:    strings.TrimSpace(req.GuestEmail),
		GuestWhatsapp: strings.TrimSpace(req.GuestWhatsapp),
		GuestAddress:  req.GuestAddress,
		Amount:        req.Amount,
		Tax:           req.Tax,
		DeliveryFee:   req.DeliveryFee,
		Currency:      req.Currency,
		Items:         req.Items,
	})
	if err != nil {
		h.handleError(w, r, "create invoice", err)
		return
	}

	writeJSON(w, http.StatusCreated, inv)
}

// ListInvoices возвращает все счета.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.ListInvoices(r.Context())
	if err != nil {
		h.handleError(w, r, "list invoices", err)
		return
	}

	writeJSON(w, http.StatusOK, emptyIfNil(invoices))
}

// PublicInvoice отдаёт счёт по токену публичной ссылки без аутентификации.
func (h *Handler) PublicInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.PublicInvoice(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.handleError(w, r, "get public invoice", err)
		return
	}

	writeJSON(w, http.StatusOK, inv)
}

// SystemNotifications возвращает ленту администратора.
func (h *Handler) SystemNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.SystemNotifications(r.Context())
	if err != nil {
		h.handleError(w, r, "list system notifications", err)
		return
	}

	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

// ListUsers возвращает всех пользователей без хешей паролей.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.handleError(w, r, "list users", err)
		return
	}

	writeJSON(w, http.StatusOK, emptyIfNil(users))
}
