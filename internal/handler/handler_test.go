package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/kart-discounts/db"
	"github.com/xenking/kart-discounts/internal/domain/discount"
	"github.com/xenking/kart-discounts/internal/domain/pricing"
	"github.com/xenking/kart-discounts/internal/seed"
	"github.com/xenking/kart-discounts/internal/storage/memory"
)

func seededRepo(t *testing.T) *memory.RuleRepository {
	t.Helper()
	repo := memory.NewRuleRepository()
	rules, err := seed.Parse(bytes.NewReader(db.SeedRules), time.Now())
	require.NoError(t, err)
	_, err = seed.Apply(context.Background(), repo, rules)
	require.NoError(t, err)
	return repo
}

func newMux(t *testing.T, repo discount.Repository) chi.Router {
	t.Helper()
	h, err := NewHandler(pricing.NewService(repo), repo, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func do(t *testing.T, mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

const pumaItems = `[{"product":{"id":"PUMA_TSHIRT_001","name":"PUMA Cotton T-Shirt","brand":"PUMA","brandTier":"REGULAR","category":"T-shirts","basePrice":"2000.00","currentPrice":"2000.00"},"quantity":2,"size":"L"}]`

const goldCustomer = `{"id":"CUSTOMER_001","tier":"GOLD","email":"john.doe@example.com"}`

func TestPriceCart(t *testing.T) {
	mux := newMux(t, seededRepo(t))

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantBody string
	}{
		{
			name:     "brand category and bank",
			body:     `{"items":` + pumaItems + `,"customer":` + goldCustomer + `,"payment":{"method":"CARD","bankName":"ICICI","cardType":"CREDIT"}}`,
			wantCode: http.StatusOK,
			wantBody: `{
				"originalPrice":"4000.00",
				"finalPrice":"1800.00",
				"totalSavings":"2200.00",
				"appliedDiscounts":{
					"BRAND_PUMA_DISCOUNT":"1600.00",
					"CATEGORY_T-shirts_DISCOUNT":"400.00",
					"BANK_ICICI_OFFER":"200.00"
				},
				"message":"Applied discounts: BRAND_PUMA_DISCOUNT (₹1600.00), CATEGORY_T-shirts_DISCOUNT (₹400.00), BANK_ICICI_OFFER (₹200.00). Total savings: ₹2200.00"
			}`,
		},
		{
			name:     "voucher",
			body:     `{"items":` + pumaItems + `,"customer":` + goldCustomer + `,"voucherCode":"SUPER69","payment":null}`,
			wantCode: http.StatusOK,
			wantBody: `{
				"originalPrice":"4000.00",
				"finalPrice":"620.00",
				"totalSavings":"3380.00",
				"appliedDiscounts":{
					"BRAND_PUMA_DISCOUNT":"1600.00",
					"CATEGORY_T-shirts_DISCOUNT":"400.00",
					"VOUCHER_SUPER69":"1380.00"
				},
				"message":"Applied discounts: BRAND_PUMA_DISCOUNT (₹1600.00), CATEGORY_T-shirts_DISCOUNT (₹400.00), VOUCHER_SUPER69 (₹1380.00). Total savings: ₹3380.00"
			}`,
		},
		{
			name:     "numeric prices and no discounts",
			body:     `{"items":[{"product":{"id":"ZARA_1","brand":"Zara","category":"Jeans","price":1299.5},"quantity":1}],"customer":{"id":"C2","tier":"SILVER"}}`,
			wantCode: http.StatusOK,
			wantBody: `{"originalPrice":"1299.50","finalPrice":"1299.50","totalSavings":"0.00","appliedDiscounts":{},"message":"No discounts applied."}`,
		},
		{
			name:     "empty cart",
			body:     `{"items":[],"customer":` + goldCustomer + `}`,
			wantCode: http.StatusBadRequest,
			wantBody: `{"code":400,"message":"cart items cannot be empty"}`,
		},
		{
			name:     "missing customer",
			body:     `{"items":` + pumaItems + `}`,
			wantCode: http.StatusBadRequest,
			wantBody: `{"code":400,"message":"customer profile is required"}`,
		},
		{
			name:     "zero quantity",
			body:     `{"items":[{"product":{"id":"P1","brand":"PUMA","category":"Shoes","price":"10"},"quantity":0}],"customer":` + goldCustomer + `}`,
			wantCode: http.StatusBadRequest,
			wantBody: `{"code":400,"message":"invalid cart item 0: quantity must be greater than 0 for product P1"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodPost, "/api/cart/price", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestPriceCart_PreservesDiscountOrder(t *testing.T) {
	mux := newMux(t, seededRepo(t))

	rec := do(t, mux, http.MethodPost, "/api/cart/price",
		`{"items":`+pumaItems+`,"customer":`+goldCustomer+`,"voucherCode":"SUPER69","payment":{"method":"CARD","bankName":"ICICI"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	keys := []string{"BRAND_PUMA_DISCOUNT", "CATEGORY_T-shirts_DISCOUNT", "VOUCHER_SUPER69", "BANK_ICICI_OFFER"}
	last := -1
	for _, k := range keys {
		i := strings.Index(body, `"`+k+`"`)
		require.Greater(t, i, last, k)
		last = i
	}
	assert.Contains(t, body, `"finalPrice":"558.00"`)
}

func TestPriceCart_MalformedBody(t *testing.T) {
	mux := newMux(t, seededRepo(t))

	for _, body := range []string{
		`{"items":`,
		`[]`,
		`{"items":[{"product":{"price":"abc"}}]}`,
		`{"items":[{"quantity":"two"}]}`,
		`{"customer":{"tier":7}}`,
		`{"items":[{"product":{"id":"P","brand":"PUMA","category":"Shoes","price":"1e5000000"},"quantity":1}],"customer":{"id":"C","tier":"GOLD"}}`,
		`{"items":[{"product":{"id":"P","brand":"PUMA","category":"Shoes","price":1e5000000},"quantity":1}],"customer":{"id":"C","tier":"GOLD"}}`,
		`{"items":[{"product":{"id":"P","brand":"PUMA","category":"Shoes","price":"1000000000000000000000"},"quantity":1}],"customer":{"id":"C","tier":"GOLD"}}`,
	} {
		rec := do(t, mux, http.MethodPost, "/api/cart/price", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), `"code":400`, body)
	}
}

func TestPriceCart_BodyTooLarge(t *testing.T) {
	mux := newMux(t, seededRepo(t))

	rec := do(t, mux, http.MethodPost, "/api/cart/price", `{"voucherCode":"`+strings.Repeat("x", maxBodyBytes)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

// brokenRepo fails every brand lookup.
type brokenRepo struct {
	discount.Repository
}

func (brokenRepo) FindBrandDiscounts(context.Context, string) ([]discount.Rule, error) {
	return nil, errors.New("connection reset by peer")
}

func (brokenRepo) FindByName(context.Context, string) (*discount.Rule, error) {
	return nil, errors.New("connection reset by peer")
}

func TestPriceCart_StoreFailure(t *testing.T) {
	mux := newMux(t, brokenRepo{Repository: memory.NewRuleRepository()})

	rec := do(t, mux, http.MethodPost, "/api/cart/price", `{"items":`+pumaItems+`,"customer":`+goldCustomer+`}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":500,"message":"internal error"}`, rec.Body.String())

	rec = do(t, mux, http.MethodPost, "/api/discounts/validate", `{"code":"SUPER69","items":`+pumaItems+`,"customer":`+goldCustomer+`}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestValidateCode(t *testing.T) {
	mux := newMux(t, seededRepo(t))

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantBody string
	}{
		{
			name:     "valid",
			body:     `{"code":" super69 ","items":` + pumaItems + `,"customer":` + goldCustomer + `}`,
			wantCode: http.StatusOK,
			wantBody: `{"code":"super69","valid":true}`,
		},
		{
			name:     "tier not eligible",
			body:     `{"code":"SUPER69","items":` + pumaItems + `,"customer":{"id":"C2","tier":"SILVER"}}`,
			wantCode: http.StatusOK,
			wantBody: `{"code":"SUPER69","valid":false}`,
		},
		{
			name:     "unknown",
			body:     `{"code":"NOPE","items":` + pumaItems + `,"customer":` + goldCustomer + `}`,
			wantCode: http.StatusOK,
			wantBody: `{"code":"NOPE","valid":false}`,
		},
		{
			name:     "blank code skips input checks",
			body:     `{"code":"","items":[]}`,
			wantCode: http.StatusOK,
			wantBody: `{"code":"","valid":false}`,
		},
		{
			name:     "missing customer",
			body:     `{"code":"SUPER69","items":` + pumaItems + `}`,
			wantCode: http.StatusBadRequest,
			wantBody: `{"code":400,"message":"customer profile is required"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodPost, "/api/discounts/validate", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestListDiscounts(t *testing.T) {
	mux := newMux(t, seededRepo(t))

	rec := do(t, mux, http.MethodGet, "/api/discounts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, name := range []string{"PUMA40", "TSHIRT10", "ICICI10", "SUPER69", "NIKE30", "HDFC15", "SHOES15"} {
		assert.Contains(t, body, `"name":"`+name+`"`)
	}
	// Highest priority first.
	assert.Less(t, strings.Index(body, "SUPER69"), strings.Index(body, "PUMA40"))

	rec = do(t, mux, http.MethodGet, "/api/discounts?type=bank_offer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "HDFC15")
	assert.Contains(t, rec.Body.String(), "ICICI10")
	assert.NotContains(t, rec.Body.String(), "PUMA40")

	rec = do(t, mux, http.MethodGet, "/api/discounts?type=LOYALTY", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutes(t *testing.T) {
	mux := newMux(t, seededRepo(t))

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, mux, http.MethodGet, "/api/cart/price", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, "/api/unknown", "").Code)
}
