// Package billing defines the catalog, subscription and proration types shared
// by every saazpay component, the Client contract of the billing backend, and
// the display formatting rules for prices.
//
// # Overview
//
// Prices, taxes and prorations are computed by the payment provider. This
// package only describes them and renders them. Two money conventions exist
// side by side and are deliberately kept apart:
//
//   - Catalog plans carry Price in major units. FormatCatalogPrice prints the
//     currency code and the number as-is: "USD 49.99".
//   - Proration previews carry signed minor units. FormatCents divides by 100
//     and formats for en-US in the preview's own currency: "$49.99".
//
// # Usage Example
//
// Render a preview breakdown:
//
//	preview, err := client.PreviewPlan(ctx, planID)
//	if err != nil {
//		return err
//	}
//	for _, row := range billing.ProrationRows(*preview) {
//		fmt.Printf("%-32s %s\n", row.Label, row.Amount)
//	}
//
// Split the catalog around the active subscription:
//
//	current, others := billing.SplitCatalog(plans, sub)
//	monthly := billing.FilterByInterval(others, billing.IntervalMonth)
//
// # Related Packages
//
//   - pkg/planchange: the confirmation workflow built on Client
//   - pkg/provider: Client implementations
package billing
