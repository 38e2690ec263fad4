package booking

// ApplyDiscount computes the pricing preview for a coupon. Percent
// coupons scale the price, flat coupons subtract directly; the final
// price never goes below zero.
func ApplyDiscount(originalPrice float64, c *Coupon) Pricing {
	p := Pricing{Original: originalPrice, Final: originalPrice}
	if c == nil {
		return p
	}

	switch c.DiscountType {
	case DiscountPercent:
		p.Discount = originalPrice * c.DiscountValue / 100
	case DiscountFlat:
		p.Discount = c.DiscountValue
	}

	p.Final = originalPrice - p.Discount
	if p.Final < 0 {
		p.Final = 0
	}

	return p
}
