package quote

import "github.com/noah-isme/backend-quote/internal/pricing"

// LineItem is one selected service in the cart.
type LineItem struct {
	ServiceID string         `json:"serviceId"`
	TierID    pricing.TierID `json:"tierId"`
	Quantity  int            `json:"quantity"`
	AddOns    []string       `json:"selectedAddOns"`
	Subtotal  pricing.Money  `json:"subtotal"`
}

// CustomerInfo holds the visitor's contact details. Values are opaque.
type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Phone   string `json:"phone"`
	Notes   string `json:"notes"`
}

// CustomerPatch carries a partial CustomerInfo update; nil fields are left untouched.
type CustomerPatch struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Company *string `json:"company,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}

// Empty reports whether the patch sets no fields.
func (p CustomerPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Company == nil && p.Phone == nil && p.Notes == nil
}

func (p CustomerPatch) applyTo(info *CustomerInfo) {
	if p.Name != nil {
		info.Name = *p.Name
	}
	if p.Email != nil {
		info.Email = *p.Email
	}
	if p.Company != nil {
		info.Company = *p.Company
	}
	if p.Phone != nil {
		info.Phone = *p.Phone
	}
	if p.Notes != nil {
		info.Notes = *p.Notes
	}
}

// Cart is a read-only snapshot of the aggregator state.
type Cart struct {
	Builder            string        `json:"builder"`
	Currency           string        `json:"currency,omitempty"`
	Items              []LineItem    `json:"items"`
	Customer           CustomerInfo  `json:"customer"`
	ItemCount          int           `json:"itemCount"`
	Subtotal           pricing.Money `json:"subtotal"`
	DiscountPercentage int           `json:"discountPercentage"`
	Discount           pricing.Money `json:"discount"`
	Total              pricing.Money `json:"total"`
}
