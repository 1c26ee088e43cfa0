package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/wellnesstree/marketplace-api/internal/domain/product"
)

// ListProducts handles GET /api/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	e := &jx.Encoder{}
	e.ArrStart()
	for _, p := range products {
		encodeProduct(e, p)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, e)
}

// GetProduct handles GET /api/products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeInternal(w, r, err)
		return
	}

	e := &jx.Encoder{}
	encodeProduct(e, *p)
	writeJSON(w, http.StatusOK, e)
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("merchant_id")
	e.Str(p.MerchantID)
	e.FieldStart("name")
	e.Str(p.Name)
	encodeMoney(e, "price", p.Price)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("pool_item")
	e.Bool(p.PoolItem)
	e.ObjEnd()
}
