package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/rentalhub/internal/model"
)

// ListProducts возвращает каталог, при необходимости отфильтрованный по категории.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.handleError(w, r, "list products", err)
		return
	}

	writeJSON(w, http.StatusOK, emptyIfNil(products))
}

type productRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"imageUrl"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

// CreateProduct добавляет товар в каталог.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := &model.Product{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if err := h.service.CreateProduct(r.Context(), p); err != nil {
		h.handleError(w, r, "create product", err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

type packageItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type packageRequest struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	ImageURL    string               `json:"imageUrl"`
	Price       decimal.Decimal      `json:"price"`
	Duration    int                  `json:"duration"`
	Items       []packageItemRequest `json:"items"`
}

func (req packageRequest) toPackage(id int64) *model.RentalPackage {
	p := &model.RentalPackage{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Price:       req.Price,
		Duration:    req.Duration,
		Items:       make([]model.PackageItem, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		p.Items = append(p.Items, model.PackageItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return p
}

// ListPackages возвращает пакеты аренды.
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.service.ListPackages(r.Context())
	if err != nil {
		h.handleError(w, r, "list packages", err)
		return
	}

	writeJSON(w, http.StatusOK, emptyIfNil(packages))
}

// GetPackage возвращает пакет аренды с его позициями.
func (h *Handler) GetPackage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid package id")
		return
	}

	p, err := h.service.GetPackage(r.Context(), id)
	if err != nil {
		h.handleError(w, r, "get package", err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// CreatePackage создаёт пакет аренды.
func (h *Handler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	var req packageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := req.toPackage(0)
	if err := h.service.CreatePackage(r.Context(), p); err != nil {
		h.handleError(w, r, "create package", err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// UpdatePackage заменяет пакет аренды.
func (h *Handler) UpdatePackage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid package id")
		return
	}

	var req packageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.service.UpdatePackage(r.Context(), req.toPackage(id))
	if err != nil {
		h.handleError(w, r, "update package", err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// DeletePackage удаляет пакет аренды, если на него не ссылаются заказы.
func (h *Handler) DeletePackage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid package id")
		return
	}

	if err := h.service.DeletePackage(r.Context(), id); err != nil {
		h.handleError(w, r, "delete package", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
