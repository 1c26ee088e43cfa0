package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wellnesstree/marketplace-api/internal/domain/merchant"
	"github.com/wellnesstree/marketplace-api/internal/domain/pricing"
	"github.com/wellnesstree/marketplace-api/internal/domain/product"
	"github.com/wellnesstree/marketplace-api/internal/domain/referral"
)

// ValidationError aggregates every missing or invalid request field so
// the caller sees the complete list in one response.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid fields: %s", strings.Join(e.Fields, ", "))
}

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// ItemRequest is one cart entry in a place-order request.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// ShippingSelection carries the chosen rate. Method may be empty, in
// which case it is detected from the rate's service-level string.
type ShippingSelection struct {
	Method       ShippingMethod
	ServiceLevel string
	Cost         decimal.Decimal
}

// PlaceOrderRequest holds the validated-cart input for order assembly.
type PlaceOrderRequest struct {
	UserID       string
	MerchantID   string
	OrderType    Type
	Items        []ItemRequest
	Shipping     ShippingSelection
	TrackingCode string
	ReferralCode string
	CreatorID    string
	CreatorName  string
}

// Service assembles and persists orders.
type Service struct {
	products  product.Repository
	merchants merchant.Repository
	numbers   *NumberGenerator
	orders    Repository
	referrals *referral.Validator
	now       func() time.Time
}

// NewService creates an order Service with the required domain
// dependencies.
func NewService(
	products product.Repository,
	merchants merchant.Repository,
	numbers *NumberGenerator,
	orders Repository,
	referrals *referral.Validator,
) *Service {
	return &Service{
		products:  products,
		merchants: merchants,
		numbers:   numbers,
		orders:    orders,
		referrals: referrals,
		now:       time.Now,
	}
}

// PlaceOrder validates the request, prices every line item, builds
// per-merchant shipments, generates the order number, and persists the
// order. Nothing is written unless validation passes in full.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	if req.ReferralCode != "" {
		if err := s.referrals.Validate(ctx, req.ReferralCode); err != nil {
			if errors.Is(err, referral.ErrInvalidCode) {
				return nil, &ValidationError{Fields: []string{"referral_code"}}
			}
			return nil, errors.Wrap(err, "validate referral code")
		}
	}

	if req.OrderType == "" {
		req.OrderType = TypeDispensary
	}

	taxRate := s.resolveTaxRate(ctx, req)

	products, err := s.fetchProducts(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	items := make([]Item, len(req.Items))
	for i, ir := range req.Items {
		item, err := buildItem(ir, products[i], req.OrderType, taxRate)
		if err != nil {
			return nil, fmt.Errorf("price item %s: %w", ir.ProductID, err)
		}
		items[i] = item
	}

	method := req.Shipping.Method
	if method == "" {
		method = DetectShippingMethod(req.Shipping.ServiceLevel)
	}

	now := s.now()
	placed := StatusEntry{Status: StatusPlaced, Timestamp: now, Message: "order placed"}

	// One shipment per merchant represented in the cart. A single-
	// merchant checkout produces one entry, but the map shape supports
	// multi-merchant carts.
	shipments := make(map[string]Shipment)
	for i := range items {
		mid := products[i].MerchantID
		if mid == "" {
			mid = req.MerchantID
		}
		if _, ok := shipments[mid]; !ok {
			shipments[mid] = Shipment{
				MerchantID:    mid,
				Method:        method,
				Status:        StatusPlaced,
				StatusHistory: []StatusEntry{placed},
			}
		}
	}

	o := &Order{
		ID:            uuid.New().String(),
		OrderNumber:   s.numbers.Generate(ctx),
		UserID:        req.UserID,
		MerchantID:    req.MerchantID,
		OrderType:     req.OrderType,
		Status:        StatusPlaced,
		Items:         items,
		Shipments:     shipments,
		StatusHistory: []StatusEntry{placed},
		ShippingCost:  req.Shipping.Cost.Round(2),
		TrackingCode:  req.TrackingCode,
		ReferralCode:  req.ReferralCode,
		CreatorID:     req.CreatorID,
		CreatorName:   req.CreatorName,
		CreatedAt:     now,
	}
	aggregate(o)

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return o, nil
}

func validate(req PlaceOrderRequest) error {
	var missing []string
	if req.UserID == "" {
		missing = append(missing, "user_id")
	}
	if req.MerchantID == "" {
		missing = append(missing, "merchant_id")
	}
	if len(req.Items) == 0 {
		missing = append(missing, "items")
	}
	for _, item := range req.Items {
		if item.ProductID == "" {
			missing = append(missing, "items.product_id")
			break
		}
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			missing = append(missing, "items.quantity")
			break
		}
	}
	if req.Shipping.Method == "" && req.Shipping.ServiceLevel == "" {
		missing = append(missing, "shipping.method")
	}
	if req.Shipping.Cost.IsNegative() {
		missing = append(missing, "shipping.cost")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// resolveTaxRate looks up the merchant's tax rate. Treehouse orders use
// the flat creator split and never consult the merchant rate. A failed
// lookup is logged and defaults to zero rather than failing checkout.
func (s *Service) resolveTaxRate(ctx context.Context, req PlaceOrderRequest) decimal.Decimal {
	if req.OrderType == TypeTreehouse {
		return decimal.Zero
	}
	m, err := s.merchants.GetByID(ctx, req.MerchantID)
	if err != nil {
		zctx.From(ctx).Warn("merchant tax rate lookup failed, defaulting to 0",
			zap.String("merchant_id", req.MerchantID),
			zap.Error(err),
		)
		return decimal.Zero
	}
	return m.TaxRate
}

func (s *Service) fetchProducts(ctx context.Context, items []ItemRequest) ([]product.Product, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}

	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	out := make([]product.Product, len(items))
	for i, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		out[i] = p
	}
	return out, nil
}

// buildItem attaches the price decomposition for one cart entry.
// Treehouse items use the flat creator split; everything else goes
// through the tax-aware breakdown with the product's pool flag.
func buildItem(ir ItemRequest, p product.Product, typ Type, taxRate decimal.Decimal) (Item, error) {
	qty := decimal.NewFromInt(int64(ir.Quantity))

	if typ == TypeTreehouse {
		split, err := pricing.DecomposeTreehouse(p.Price)
		if err != nil {
			return Item{}, err
		}
		return Item{
			ProductID:          p.ID,
			Name:               p.Name,
			Quantity:           ir.Quantity,
			OriginalPrice:      p.Price,
			DispensarySetPrice: p.Price,
			BasePrice:          split.CreatorEarnings,
			ProductionCost:     split.ProductionCost.Mul(qty),
			PlatformCommission: split.PlatformCommission.Mul(qty),
			CommissionRate:     pricing.TreehouseCommissionRate,
			TaxAmount:          decimal.Zero,
			SubtotalBeforeTax:  p.Price,
			LineTotal:          p.Price.Mul(qty),
		}, nil
	}

	b, err := pricing.Decompose(p.Price, taxRate, p.PoolItem)
	if err != nil {
		return Item{}, err
	}
	return Item{
		ProductID:          p.ID,
		Name:               p.Name,
		Quantity:           ir.Quantity,
		OriginalPrice:      p.Price,
		DispensarySetPrice: b.DispensarySetPrice,
		BasePrice:          b.BasePrice,
		PlatformCommission: b.Commission.Mul(qty),
		CommissionRate:     b.CommissionRate,
		TaxAmount:          b.Tax.Mul(qty),
		SubtotalBeforeTax:  b.SubtotalBeforeTax,
		LineTotal:          b.FinalPrice.Mul(qty),
	}, nil
}

// aggregate sums line items into the order-level monetary fields.
// Tax is embedded in item prices, so total = subtotal + shipping.
func aggregate(o *Order) {
	subtotal, tax := decimal.Zero, decimal.Zero
	earnings, commission := decimal.Zero, decimal.Zero
	creator := decimal.Zero

	for _, item := range o.Items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		subtotal = subtotal.Add(item.LineTotal)
		tax = tax.Add(item.TaxAmount)
		earnings = earnings.Add(item.BasePrice.Mul(qty))
		commission = commission.Add(item.PlatformCommission)
		if o.OrderType == TypeTreehouse {
			creator = creator.Add(item.BasePrice.Mul(qty))
		}
	}

	o.Subtotal = subtotal.Round(2)
	o.Tax = tax.Round(2)
	o.Total = o.Subtotal.Add(o.ShippingCost)
	o.TotalDispensaryEarnings = earnings.Round(2)
	o.TotalPlatformCommission = commission.Round(2)
	o.CreatorCommission = creator.Round(2)
}

// DetectShippingMethod infers the delivery method from a shipping
// rate's service-level string. Unknown levels default to door-to-door.
func DetectShippingMethod(serviceLevel string) ShippingMethod {
	s := strings.ToLower(serviceLevel)
	switch {
	case strings.Contains(s, "locker-to-locker"), strings.Contains(s, "locker to locker"):
		return ShipLockerToLocker
	case strings.Contains(s, "door-to-locker"), strings.Contains(s, "door to locker"):
		return ShipDoorToLocker
	case strings.Contains(s, "locker-to-door"), strings.Contains(s, "locker to door"):
		return ShipLockerToDoor
	default:
		return ShipDoorToDoor
	}
}
