package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/kart-discounts/internal/codec"
	"github.com/xenking/kart-discounts/internal/domain/discount"
	"github.com/xenking/kart-discounts/internal/domain/pricing"
)

// PriceCart handles POST /api/cart/price.
func (h *Handler) PriceCart(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PriceCart")
	defer span.End()

	body, err := readBody(w, r)
	if err != nil {
		h.calculations.Add(ctx, 1, outcome("invalid"))
		writeBadRequest(ctx, w, span, err)
		return
	}
	req, err := decodePriceRequest(body)
	if err != nil {
		h.calculations.Add(ctx, 1, outcome("invalid"))
		writeBadRequest(ctx, w, span, errors.Wrap(err, "invalid request body"))
		return
	}
	span.SetAttributes(
		attribute.Int("cart.items", len(req.Items)),
		attribute.Bool("cart.voucher", strings.TrimSpace(req.VoucherCode) != ""),
	)

	result, err := h.pricer.Calculate(ctx, pricing.Request{
		Items:       req.Items,
		Customer:    req.Customer,
		VoucherCode: req.VoucherCode,
		Payment:     req.Payment,
	})
	if err != nil {
		h.calculations.Add(ctx, 1, outcome(errorOutcome(err)))
		writeServiceError(ctx, w, span, err)
		return
	}

	savings := result.Savings()
	h.calculations.Add(ctx, 1, outcome("ok"))
	h.savings.Record(ctx, savings.InexactFloat64())
	span.SetAttributes(attribute.Int("discounts.applied", result.Applied.Len()))

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeDiscountedPrice(e, result)
	writeJSON(w, http.StatusOK, e.Bytes())
}

// ValidateCode handles POST /api/discounts/validate.
func (h *Handler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ValidateCode")
	defer span.End()

	body, err := readBody(w, r)
	if err != nil {
		h.validations.Add(ctx, 1, outcome("invalid"))
		writeBadRequest(ctx, w, span, err)
		return
	}
	req, err := decodeValidateRequest(body)
	if err != nil {
		h.validations.Add(ctx, 1, outcome("invalid"))
		writeBadRequest(ctx, w, span, errors.Wrap(err, "invalid request body"))
		return
	}

	valid, err := h.pricer.ValidateCode(ctx, req.Code, req.Items, req.Customer)
	if err != nil {
		h.validations.Add(ctx, 1, outcome(errorOutcome(err)))
		writeServiceError(ctx, w, span, err)
		return
	}
	if valid {
		h.validations.Add(ctx, 1, outcome("valid"))
	} else {
		h.validations.Add(ctx, 1, outcome("rejected"))
	}
	span.SetAttributes(attribute.Bool("code.valid", valid))

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Str(strings.TrimSpace(req.Code))
	e.FieldStart("valid")
	e.Bool(valid)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

// ListDiscounts handles GET /api/discounts. The optional type query
// parameter restricts the listing to one rule type.
func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListDiscounts")
	defer span.End()

	var (
		rules []discount.Rule
		err   error
	)
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, parseErr := discount.ParseType(raw)
		if parseErr != nil {
			writeBadRequest(ctx, w, span, parseErr)
			return
		}
		rules, err = h.rules.FindByType(ctx, t)
	} else {
		rules, err = h.rules.FindAllActive(ctx)
	}
	if err != nil {
		writeServiceError(ctx, w, span, errors.Wrap(err, "list rules"))
		return
	}
	span.SetAttributes(attribute.Int("rules.count", len(rules)))

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.ObjStart()
	e.FieldStart("rules")
	codec.EncodeRules(e, rules)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

func encodeDiscountedPrice(e *jx.Encoder, p *discount.DiscountedPrice) {
	e.ObjStart()
	e.FieldStart("originalPrice")
	codec.EncodeMoney(e, p.OriginalPrice)
	e.FieldStart("finalPrice")
	codec.EncodeMoney(e, p.FinalPrice)
	e.FieldStart("totalSavings")
	codec.EncodeMoney(e, p.Savings())
	e.FieldStart("appliedDiscounts")
	e.ObjStart()
	for _, entry := range p.Applied.Entries() {
		e.FieldStart(entry.Key)
		codec.EncodeMoney(e, entry.Amount)
	}
	e.ObjEnd()
	e.FieldStart("message")
	e.Str(p.Message)
	e.ObjEnd()
}

func outcome(v string) metric.AddOption {
	return metric.WithAttributes(attribute.String("outcome", v))
}

func errorOutcome(err error) string {
	var vErr *pricing.ValidationError
	if errors.As(err, &vErr) {
		return "invalid"
	}
	return "error"
}

func markSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
