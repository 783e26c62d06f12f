package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"mobile-payment-backend/internal/catalog"
	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/pkg/apierror"
)

type ProductHandler struct {
	catalog *catalog.Catalog
}

func NewProductHandler(c *catalog.Catalog) *ProductHandler {
	return &ProductHandler{catalog: c}
}

func (h *ProductHandler) Scan(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.ScanRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	barcode := strings.TrimSpace(payload.Barcode)
	if barcode == "" {
		writeError(w, apierror.Validation("MISSING_BARCODE", "barcode is required"))
		return
	}

	result, err := h.catalog.Scan(barcode, strings.TrimSpace(payload.StoreID))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, result)
}

// List returns the whole catalog, or a name search when q is given.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		products := h.catalog.All()
		writeSuccess(w, http.StatusOK, model.ProductList{Count: len(products), Products: products})
		return
	}

	limit := catalog.DefaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, apierror.New("BAD_REQUEST", "limit must be a positive integer", "limit", http.StatusBadRequest))
			return
		}
		limit = parsed
	}

	products := h.catalog.Search(query, limit)
	writeSuccess(w, http.StatusOK, model.ProductList{Query: query, Count: len(products), Products: products})
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.Get(chi.URLParam(r, "barcode"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"product": product})
}

func (h *ProductHandler) Stock(w http.ResponseWriter, r *http.Request) {
	quantity := 1
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apierror.Validation("INVALID_QUANTITY", "quantity must be a positive integer"))
			return
		}
		quantity = parsed
	}

	check, err := h.catalog.CheckStock(chi.URLParam(r, "barcode"), quantity)
	if err != nil {
		if check.Barcode != "" {
			writeFailure(w, err, check)
			return
		}
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, check)
}
