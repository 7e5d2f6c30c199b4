package normalize

// DefaultPatterns returns the built-in receipt line classification patterns.
// Receipt printers abbreviate aggressively, so the discount patterns accept
// the common truncations alongside the full words.
func DefaultPatterns() []Pattern {
	return []Pattern{
		// Discount patterns - highest priority
		{
			Name:     "Store Coupon",
			Kind:     KindDiscount,
			Regex:    `\b(store\s*coupon|mfr\s*coupon|mfg\s*coupon|scanned\s*coupon|coupon|cpn)\b`,
			Priority: 100,
		},
		{
			Name:     "Member Discount",
			Kind:     KindDiscount,
			Regex:    `\b(member\s*disc(ount)?|member\s*savings|club\s*savings|card\s*savings|loyalty)\b`,
			Priority: 95,
		},
		{
			Name:     "Instant Savings",
			Kind:     KindDiscount,
			Regex:    `\b(instant\s*sav(ings|e)?|inst\s*sv(gs)?|savings|you\s*saved)\b`,
			Priority: 90,
		},
		{
			Name:     "Percent Off",
			Kind:     KindDiscount,
			Regex:    `\d+\s*%\s*off|\bpct\s*off\b`,
			Priority: 90,
		},
		{
			Name:     "Amount Off",
			Kind:     KindDiscount,
			Regex:    `[$€£]\s*\d+(\.\d{2})?\s*off\b`,
			Priority: 85,
		},
		{
			Name:     "Generic Discount",
			Kind:     KindDiscount,
			Regex:    `\b(discount|disc|markdown|mkdn|promo(tion)?|rollback|bogo|emp\s*disc)\b`,
			Priority: 80,
		},
		{
			Name:     "Negative Amount",
			Kind:     KindDiscount,
			Regex:    `^\s*-\s*[$€£]?\d+[.,]\d{2}\b|\d+[.,]\d{2}\s*-\s*$`,
			Priority: 70,
		},

		// Adjustment patterns
		{
			Name:     "Tax Line",
			Kind:     KindAdjustment,
			Regex:    `\b(sales\s*tax|tax|vat|gst|hst)\b`,
			Priority: 100,
		},
		{
			Name:     "Void",
			Kind:     KindAdjustment,
			Regex:    `\b(void(ed)?|cancel(led)?)\b`,
			Priority: 95,
		},
		{
			Name:     "Correction",
			Kind:     KindAdjustment,
			Regex:    `\b(correction|corr|error\s*corr(ect)?)\b`,
			Priority: 90,
		},
		{
			Name:     "Override",
			Kind:     KindAdjustment,
			Regex:    `\b(override|price\s*adj(ustment)?|adjustment|adj)\b`,
			Priority: 85,
		},
		{
			Name:     "Deposit or Fee",
			Kind:     KindAdjustment,
			Regex:    `\b(crv|bottle\s*dep(osit)?|bag\s*fee|recycl(e|ing)\s*fee)\b`,
			Priority: 80,
		},
	}
}
