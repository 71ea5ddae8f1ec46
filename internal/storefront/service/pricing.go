package service

import (
	"context"

	"github.com/sakuracloud/storefront/internal/storefront/models"
	"github.com/sakuracloud/storefront/internal/storefront/repository"
	"github.com/shopspring/decimal"
)

// Quote is a priced view of a user's cart: the frozen lines plus the
// subtotal/discount/total arithmetic that a checkout submission turns into
// an order.
type Quote struct {
	Lines     []models.OrderLine `json:"lines"`
	Subtotal  decimal.Decimal    `json:"subtotal"`
	Discount  decimal.Decimal    `json:"discount"`
	Total     decimal.Decimal    `json:"total"`
	PromoCode string             `json:"promo_code,omitempty"`
}

// Pricer resolves cart lines to prices and applies promo discounts.
type Pricer struct {
	repo repository.Repository
}

// NewPricer creates a new pricer
func NewPricer(repo repository.Repository) *Pricer {
	return &Pricer{repo: repo}
}

// BuildQuote prices every line in the user's cart and applies promoCode if
// it is currently valid. Lines whose product has gone missing or
// unavailable since it was added are skipped, matching the cart's
// best-effort nature; an invalid or exhausted promo code yields a zero
// discount rather than an error.
func (p *Pricer) BuildQuote(ctx context.Context, userID int64, promoCode string) (*Quote, error) {
	items, err := p.repo.GetCartItems(ctx, userID)
	if err != nil {
		return nil, err
	}

	quote := &Quote{
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
		Total:    decimal.Zero,
	}

	for _, item := range items {
		product, err := p.repo.GetProductByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil || !product.IsAvailable {
			continue
		}

		price := product.Price(item.BillingCycle)
		quote.Lines = append(quote.Lines, models.OrderLine{
			ProductID:    product.ID,
			Region:       product.Region,
			BillingCycle: item.BillingCycle,
			Price:        price,
		})
		quote.Subtotal = quote.Subtotal.Add(price)
	}

	if promoCode != "" {
		promo, err := p.repo.GetValidPromoCode(ctx, promoCode)
		if err != nil {
			return nil, err
		}
		if promo != nil {
			quote.Discount = p.DiscountFor(promo, quote.Subtotal)
			quote.PromoCode = promo.Code
		}
	}

	quote.Total = quote.Subtotal.Sub(quote.Discount)

	return quote, nil
}

// DiscountFor computes the discount a promo grants on a subtotal.
func (p *Pricer) DiscountFor(promo *models.PromoCode, subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(promo.DiscountPercentage).Div(decimal.NewFromInt(100)).Round(2)
}
