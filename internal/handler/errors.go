package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-discounts/internal/domain/pricing"
)

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, e.Bytes())
}

func writeBadRequest(ctx context.Context, w http.ResponseWriter, span trace.Span, err error) {
	zctx.From(ctx).Debug("Bad request", zap.Error(err))
	markSpan(span, err)

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// writeServiceError maps pricing errors: caller mistakes become 400, and
// everything else is logged and hidden behind a generic 500.
func writeServiceError(ctx context.Context, w http.ResponseWriter, span trace.Span, err error) {
	var vErr *pricing.ValidationError
	if errors.As(err, &vErr) {
		writeBadRequest(ctx, w, span, vErr)
		return
	}

	zctx.From(ctx).Error("Request failed", zap.Error(err))
	markSpan(span, err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
