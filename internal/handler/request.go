package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-discounts/internal/codec"
	"github.com/xenking/kart-discounts/internal/domain/discount"
)

type priceRequest struct {
	Items       []discount.CartItem
	Customer    *discount.Customer
	VoucherCode string
	Payment     *discount.PaymentInfo
}

type validateRequest struct {
	Code     string
	Items    []discount.CartItem
	Customer *discount.Customer
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return data, nil
}

func decodePriceRequest(data []byte) (priceRequest, error) {
	var req priceRequest
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "items":
			req.Items, err = decodeItems(d)
		case "customer":
			req.Customer, err = decodeCustomer(d)
		case "voucherCode":
			req.VoucherCode, err = decodeOptString(d)
		case "payment", "paymentInfo":
			req.Payment, err = decodePayment(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "%s", key)
		}
		return nil
	})
	return req, err
}

func decodeValidateRequest(data []byte) (validateRequest, error) {
	var req validateRequest
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			req.Code, err = decodeOptString(d)
		case "items":
			req.Items, err = decodeItems(d)
		case "customer":
			req.Customer, err = decodeCustomer(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "%s", key)
		}
		return nil
	})
	return req, err
}

func decodeItems(d *jx.Decoder) ([]discount.CartItem, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	items := []discount.CartItem{}
	err := d.Arr(func(d *jx.Decoder) error {
		var item discount.CartItem
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "product":
				item.Product, err = decodeProduct(d)
			case "quantity":
				item.Quantity, err = d.Int()
			case "size":
				item.Size, err = decodeOptString(d)
			default:
				return d.Skip()
			}
			if err != nil {
				return errors.Wrapf(err, "%s", key)
			}
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "[%d]", len(items))
		}
		items = append(items, item)
		return nil
	})
	return items, err
}

func decodeProduct(d *jx.Decoder) (discount.Product, error) {
	var p discount.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = decodeOptString(d)
		case "brand":
			p.Brand, err = d.Str()
		case "brandTier":
			var s string
			s, err = decodeOptString(d)
			p.BrandTier = discount.BrandTier(s)
		case "category":
			p.Category, err = d.Str()
		case "basePrice":
			p.BasePrice, err = codec.DecodeDecimal(d)
		case "price", "currentPrice":
			p.Price, err = codec.DecodeDecimal(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "%s", key)
		}
		return nil
	})
	return p, err
}

func decodeCustomer(d *jx.Decoder) (*discount.Customer, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var c discount.Customer
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = d.Str()
		case "tier":
			c.Tier, err = d.Str()
		case "email":
			c.Email, err = decodeOptString(d)
		case "totalPurchaseValue":
			c.TotalPurchaseValue, err = codec.DecodeDecimal(d)
		case "orderCount":
			c.OrderCount, err = d.Int()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "%s", key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func decodePayment(d *jx.Decoder) (*discount.PaymentInfo, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var p discount.PaymentInfo
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "method":
			p.Method, err = decodeOptString(d)
		case "bankName":
			p.BankName, err = decodeNullString(d)
		case "cardType":
			p.CardType, err = decodeNullString(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "%s", key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeOptString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func decodeNullString(d *jx.Decoder) (*string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	return &s, nil
}
