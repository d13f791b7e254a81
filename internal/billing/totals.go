package billing

import "math"

// ComputeTotals derives the document totals from its items and discount
// configuration. Pure and deterministic: calling it twice on the same
// inputs yields identical output.
//
// VAT is distributed per line. Each line's net amount is scaled by the
// global discount ratio before its own tax rate applies, so a global
// discount keeps the tax split correct when lines carry different rates.
// Every intermediate amount is clamped at zero: discounts may not drive a
// line or the document negative.
func ComputeTotals(items []LineItem, cfg DiscountConfig) Totals {
	var netBefore, lineDiscountTotal float64
	for _, item := range items {
		if item.Kind == LineFreeText {
			continue
		}
		gross := item.Quantity * item.UnitPrice
		discount := lineDiscount(item, cfg, gross)
		lineDiscountTotal += discount
		netBefore += math.Max(0, gross-discount)
	}

	var globalDiscount float64
	if cfg.GlobalDiscountValue > 0 {
		if cfg.GlobalDiscountUnit == DiscountAmount {
			globalDiscount = cfg.GlobalDiscountValue
		} else {
			globalDiscount = netBefore * cfg.GlobalDiscountValue / 100
		}
	}

	// With an empty document the ratio is defined as 1.
	ratio := 1.0
	if netBefore > 0 {
		ratio = math.Max(0, 1-globalDiscount/netBefore)
	}

	netHT := math.Max(0, netBefore-globalDiscount)

	var vat float64
	for _, item := range items {
		if item.Kind == LineFreeText {
			continue
		}
		gross := item.Quantity * item.UnitPrice
		lineNet := math.Max(0, gross-lineDiscount(item, cfg, gross))
		vat += lineNet * ratio * item.TaxRate / 100
	}

	return Totals{
		NetBeforeGlobalDiscount: netBefore,
		LineDiscountTotal:       lineDiscountTotal,
		GlobalDiscountAmount:    globalDiscount,
		NetHT:                   netHT,
		VAT:                     vat,
		TTC:                     netHT + vat,
	}
}

func lineDiscount(item LineItem, cfg DiscountConfig, gross float64) float64 {
	if !cfg.LineDiscountsEnabled || item.DiscountValue <= 0 {
		return 0
	}
	unit := item.DiscountUnit
	if unit == "" {
		unit = cfg.LineDiscountUnit
	}
	if unit == DiscountAmount {
		return item.DiscountValue
	}
	return gross * item.DiscountValue / 100
}
