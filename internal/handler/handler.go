// Package handler exposes the pricing service over HTTP with jx-encoded JSON.
package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/kart-discounts/internal/domain/discount"
	"github.com/xenking/kart-discounts/internal/domain/pricing"
)

const instrumentationName = "github.com/xenking/kart-discounts/internal/handler"

// maxBodyBytes limits request bodies.
const maxBodyBytes = 1 << 20

// Pricer is the pricing API consumed by the handler.
type Pricer interface {
	Calculate(ctx context.Context, req pricing.Request) (*discount.DiscountedPrice, error)
	ValidateCode(ctx context.Context, code string, items []discount.CartItem, customer *discount.Customer) (bool, error)
}

var _ Pricer = (*pricing.Service)(nil)

// Handler serves the pricing endpoints.
type Handler struct {
	pricer Pricer
	rules  discount.Repository

	tracer       trace.Tracer
	calculations metric.Int64Counter
	validations  metric.Int64Counter
	savings      metric.Float64Histogram
}

// NewHandler creates a Handler. rules backs the rule listing endpoint.
func NewHandler(pricer Pricer, rules discount.Repository, tp trace.TracerProvider, mp metric.MeterProvider) (*Handler, error) {
	meter := mp.Meter(instrumentationName)

	calculations, err := meter.Int64Counter("pricing.calculations",
		metric.WithDescription("Cart price calculations by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "calculations counter")
	}
	validations, err := meter.Int64Counter("pricing.code_validations",
		metric.WithDescription("Discount code validations by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "validations counter")
	}
	savings, err := meter.Float64Histogram("pricing.savings",
		metric.WithDescription("Total savings per priced cart"),
		metric.WithUnit("{INR}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "savings histogram")
	}

	return &Handler{
		pricer:       pricer,
		rules:        rules,
		tracer:       tp.Tracer(instrumentationName),
		calculations: calculations,
		validations:  validations,
		savings:      savings,
	}, nil
}

// Register mounts the API routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/cart/price", h.PriceCart)
	r.Post("/api/discounts/validate", h.ValidateCode)
	r.Get("/api/discounts", h.ListDiscounts)
}
