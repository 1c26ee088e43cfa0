// Package handler exposes the marketplace API over HTTP. Requests and
// responses are encoded with jx; domain errors map to the typed
// {code, message} error shape.
package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"

	"github.com/wellnesstree/marketplace-api/internal/domain/ads"
	"github.com/wellnesstree/marketplace-api/internal/domain/order"
	"github.com/wellnesstree/marketplace-api/internal/domain/product"
)

// Handler serves the marketplace API, delegating business logic to the
// injected domain services.
type Handler struct {
	products     product.Repository
	orderService *order.Service
	orders       order.Repository
	tracker      *ads.Tracker

	ordersPlaced metric.Int64Counter
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	orderService *order.Service,
	orders order.Repository,
	tracker *ads.Tracker,
	meter metric.Meter,
) (*Handler, error) {
	ordersPlaced, err := meter.Int64Counter("orders.placed")
	if err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}

	return &Handler{
		products:     products,
		orderService: orderService,
		orders:       orders,
		tracker:      tracker,
		ordersPlaced: ordersPlaced,
	}, nil
}

// Routes registers every API route on the mux. The security middleware
// guards the mutating routes.
func (h *Handler) Routes(mux *http.ServeMux, secure func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.Handle("POST /api/orders", secure(http.HandlerFunc(h.PlaceOrder)))
	mux.HandleFunc("GET /api/orders/{orderNumber}", h.GetOrder)
	mux.Handle("POST /api/ads/impressions", secure(http.HandlerFunc(h.TrackImpression)))
	mux.Handle("POST /api/ads/clicks", secure(http.HandlerFunc(h.TrackClick)))
}
