package httppresentation

import (
	"time"

	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

type guestRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

type itemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Variant   domcart.Variant `json:"variant,omitempty"`
}

type createOrderRequest struct {
	Items           []itemRequest    `json:"items,omitempty"`
	ShippingAddress domorder.Address `json:"shipping_address"`
	Guest           *guestRequest    `json:"guest,omitempty"`
	IdempotencyKey  string           `json:"idempotency_key,omitempty"`
}

func (r createOrderRequest) lines() []domcart.Line {
	if len(r.Items) == 0 {
		return nil
	}
	out := make([]domcart.Line, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, domcart.Line{ProductID: it.ProductID, Quantity: it.Quantity, Variant: it.Variant})
	}
	return out
}

type statusRequest struct {
	Status string `json:"status"`
}

type callbackRequest struct {
	ProviderReference string `json:"provider_reference"`
	Status            string `json:"status"`
}

type callbackResponse struct {
	OrderID       string                 `json:"order_id"`
	PaymentStatus domorder.PaymentStatus `json:"payment_status"`
	Applied       bool                   `json:"applied"`
}

type guestSessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type orderItemResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice string          `json:"unit_price"`
	Variant   domcart.Variant `json:"variant,omitempty"`
	TaxRate   string          `json:"tax_rate"`
	Tax       string          `json:"tax"`
}

type orderResponse struct {
	OrderID            string                 `json:"order_id"`
	Status             domorder.Status        `json:"status"`
	PaymentStatus      domorder.PaymentStatus `json:"payment_status"`
	PaymentReference   string                 `json:"payment_reference,omitempty"`
	PaymentRedirectURL string                 `json:"payment_redirect_url,omitempty"`
	Items              []orderItemResponse    `json:"items"`
	Subtotal           string                 `json:"subtotal"`
	Tax                string                 `json:"tax"`
	Total              string                 `json:"total"`
	Currency           string                 `json:"currency"`
	ShippingAddress    domorder.Address       `json:"shipping_address"`
	Rejected           []checkout.Rejection   `json:"rejected"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

func newOrderResponse(o *domorder.Order, rejected []checkout.Rejection) orderResponse {
	if rejected == nil {
		rejected = []checkout.Rejection{}
	}
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.String(),
			Variant:   it.Variant,
			TaxRate:   it.TaxRate.String(),
			Tax:       it.TaxAmount.String(),
		})
	}
	return orderResponse{
		OrderID:            o.ID,
		Status:             o.Status,
		PaymentStatus:      o.Payment.Status,
		PaymentReference:   o.Payment.ProviderReference,
		PaymentRedirectURL: o.Payment.RedirectURL,
		Items:              items,
		Subtotal:           o.Subtotal.String(),
		Tax:                o.TaxAmount.String(),
		Total:              o.TotalAmount.String(),
		Currency:           o.Currency,
		ShippingAddress:    o.ShippingAddress,
		Rejected:           rejected,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

type errorResponse struct {
	Error     string               `json:"error"`
	Code      string               `json:"code"`
	Field     string               `json:"field,omitempty"`
	ProductID string               `json:"product_id,omitempty"`
	Reason    string               `json:"reason,omitempty"`
	OrderID   string               `json:"order_id,omitempty"`
	Rejected  []checkout.Rejection `json:"rejected,omitempty"`
	Retryable bool                 `json:"retryable,omitempty"`
}
