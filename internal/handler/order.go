package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/wellnesstree/marketplace-api/internal/domain/order"
)

// PlaceOrder handles POST /api/orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	req, err := decodePlaceOrderRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request: "+err.Error())
		return
	}

	o, err := h.orderService.PlaceOrder(r.Context(), req)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	h.ordersPlaced.Add(r.Context(), 1)

	e := &jx.Encoder{}
	encodeOrder(e, o)
	writeJSON(w, http.StatusCreated, e)
}

// GetOrder handles GET /api/orders/{orderNumber}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetByNumber(r.Context(), r.PathValue("orderNumber"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeInternal(w, r, err)
		return
	}

	e := &jx.Encoder{}
	encodeOrder(e, o)
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *order.ValidationError
	if errors.As(err, &vErr) {
		writeError(w, http.StatusBadRequest, vErr.Error())
		return
	}

	var pnfErr *order.ProductNotFoundError
	if errors.As(err, &pnfErr) {
		writeError(w, http.StatusUnprocessableEntity, pnfErr.Error())
		return
	}

	writeInternal(w, r, err)
}

func decodePlaceOrderRequest(body []byte) (order.PlaceOrderRequest, error) {
	var req order.PlaceOrderRequest
	d := jx.DecodeBytes(body)

	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "user_id":
			v, err := d.Str()
			req.UserID = v
			return err
		case "merchant_id":
			v, err := d.Str()
			req.MerchantID = v
			return err
		case "order_type":
			v, err := d.Str()
			req.OrderType = order.Type(v)
			return err
		case "tracking_code":
			v, err := d.Str()
			req.TrackingCode = v
			return err
		case "referral_code":
			v, err := d.Str()
			req.ReferralCode = v
			return err
		case "creator_id":
			v, err := d.Str()
			req.CreatorID = v
			return err
		case "creator_name":
			v, err := d.Str()
			req.CreatorName = v
			return err
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItemRequest(d)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		case "shipping":
			sel, err := decodeShippingSelection(d)
			req.Shipping = sel
			return err
		default:
			return d.Skip()
		}
	})
	return req, err
}

func decodeItemRequest(d *jx.Decoder) (order.ItemRequest, error) {
	var item order.ItemRequest
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := d.Str()
			item.ProductID = v
			return err
		case "quantity":
			v, err := d.Int()
			item.Quantity = v
			return err
		default:
			return d.Skip()
		}
	})
	return item, err
}

func decodeShippingSelection(d *jx.Decoder) (order.ShippingSelection, error) {
	var sel order.ShippingSelection
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "method":
			v, err := d.Str()
			sel.Method = order.ShippingMethod(v)
			return err
		case "service_level":
			v, err := d.Str()
			sel.ServiceLevel = v
			return err
		case "cost":
			v, err := decodeMoney(d)
			sel.Cost = v
			return err
		default:
			return d.Skip()
		}
	})
	return sel, err
}

func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	num, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(string(num))
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("order_number")
	e.Str(o.OrderNumber)
	e.FieldStart("user_id")
	e.Str(o.UserID)
	e.FieldStart("merchant_id")
	e.Str(o.MerchantID)
	e.FieldStart("order_type")
	e.Str(string(o.OrderType))
	e.FieldStart("status")
	e.Str(o.Status)

	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		encodeOrderItem(e, item)
	}
	e.ArrEnd()

	e.FieldStart("shipments")
	e.ObjStart()
	for mid, sh := range o.Shipments {
		e.FieldStart(mid)
		encodeShipment(e, sh)
	}
	e.ObjEnd()

	e.FieldStart("status_history")
	e.ArrStart()
	for _, st := range o.StatusHistory {
		encodeStatusEntry(e, st)
	}
	e.ArrEnd()

	encodeMoney(e, "subtotal", o.Subtotal)
	encodeMoney(e, "shipping_cost", o.ShippingCost)
	encodeMoney(e, "tax", o.Tax)
	encodeMoney(e, "total", o.Total)
	encodeMoney(e, "total_dispensary_earnings", o.TotalDispensaryEarnings)
	encodeMoney(e, "total_platform_commission", o.TotalPlatformCommission)

	if o.TrackingCode != "" {
		e.FieldStart("tracking_code")
		e.Str(o.TrackingCode)
	}
	if o.ReferralCode != "" {
		e.FieldStart("referral_code")
		e.Str(o.ReferralCode)
	}
	if o.CreatorID != "" {
		e.FieldStart("creator_id")
		e.Str(o.CreatorID)
		e.FieldStart("creator_name")
		e.Str(o.CreatorName)
		encodeMoney(e, "creator_commission", o.CreatorCommission)
	}

	e.FieldStart("created_at")
	e.Str(o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	e.ObjEnd()
}

func encodeOrderItem(e *jx.Encoder, item order.Item) {
	e.ObjStart()
	e.FieldStart("product_id")
	e.Str(item.ProductID)
	e.FieldStart("name")
	e.Str(item.Name)
	e.FieldStart("quantity")
	e.Int(item.Quantity)
	encodeMoney(e, "original_price", item.OriginalPrice)
	encodeMoney(e, "dispensary_set_price", item.DispensarySetPrice)
	encodeMoney(e, "base_price", item.BasePrice)
	encodeMoney(e, "production_cost", item.ProductionCost)
	encodeMoney(e, "platform_commission", item.PlatformCommission)
	encodeMoney(e, "commission_rate", item.CommissionRate)
	encodeMoney(e, "tax_amount", item.TaxAmount)
	encodeMoney(e, "subtotal_before_tax", item.SubtotalBeforeTax)
	encodeMoney(e, "line_total", item.LineTotal)
	e.ObjEnd()
}

func encodeShipment(e *jx.Encoder, sh order.Shipment) {
	e.ObjStart()
	e.FieldStart("merchant_id")
	e.Str(sh.MerchantID)
	e.FieldStart("method")
	e.Str(string(sh.Method))
	e.FieldStart("status")
	e.Str(sh.Status)
	if sh.TrackingNumber != "" {
		e.FieldStart("tracking_number")
		e.Str(sh.TrackingNumber)
	}
	e.FieldStart("status_history")
	e.ArrStart()
	for _, st := range sh.StatusHistory {
		encodeStatusEntry(e, st)
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeStatusEntry(e *jx.Encoder, st order.StatusEntry) {
	e.ObjStart()
	e.FieldStart("status")
	e.Str(st.Status)
	e.FieldStart("timestamp")
	e.Str(st.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	e.FieldStart("message")
	e.Str(st.Message)
	e.ObjEnd()
}
