package billing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// NotAvailable is shown in place of a missing next billing date
const NotAvailable = "Not available"

// dateTimeLayout renders like an en-US long date with a two digit 12h clock
const dateTimeLayout = "January 2, 2006 at 03:04 PM"

// FormatBillingCadence renders the recurring suffix shown after a price:
// "/ Monthly" for a frequency of one, "/ Every 3 months" above that, and
// nothing when either part is missing. Frequencies below one count as missing.
func FormatBillingCadence(frequency int, interval Interval) string {
	if frequency <= 0 || interval == "" {
		return ""
	}
	if frequency == 1 {
		s := string(interval)
		return "/ " + strings.ToUpper(s[:1]) + s[1:] + "ly"
	}
	return fmt.Sprintf("/ Every %d %ss", frequency, interval)
}

// FormatCents renders a signed minor-unit amount in the given currency using
// en-US conventions, e.g. 123456 USD becomes "$1,234.56" and -500 becomes
// "-$5.00". Proration previews are priced this way.
func FormatCents(amount int64, currencyCode string) string {
	major := float64(amount) / 100

	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return fmt.Sprintf("%s %.2f", strings.ToUpper(currencyCode), major)
	}

	sign := ""
	if major < 0 {
		sign = "-"
		major = -major
	}

	// half away from zero, like browser currency formatting
	scale, _ := currency.Standard.Rounding(unit)
	pow := math.Pow10(scale)
	major = math.Round(major*pow) / pow

	p := message.NewPrinter(language.AmericanEnglish)
	symbol := p.Sprint(currency.Symbol(unit))
	return sign + symbol + p.Sprint(number.Decimal(major, number.Scale(scale)))
}

// FormatCatalogPrice renders a catalog price the way the catalog carries it:
// the currency code followed by the major-unit number, with no conversion.
func FormatCatalogPrice(currencyCode string, price float64) string {
	return currencyCode + " " + strconv.FormatFloat(price, 'f', -1, 64)
}

// TrialText renders the trial badge, or "" when the plan has no trial
func TrialText(frequency int, interval string) string {
	if frequency == 0 {
		return ""
	}
	return fmt.Sprintf("%d %s(s) trial period", frequency, interval)
}

// ParseTimestamp parses a provider timestamp
func ParseTimestamp(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}

// FormatDateTime renders t like "March 5, 2025 at 02:30 PM"
func FormatDateTime(t time.Time) string {
	return t.Format(dateTimeLayout)
}

// FormatTimestamp formats a provider timestamp in loc. Unparseable values are
// returned unchanged.
func FormatTimestamp(value string, loc *time.Location) string {
	t, err := ParseTimestamp(value)
	if err != nil {
		return value
	}
	if loc != nil {
		t = t.In(loc)
	}
	return FormatDateTime(t)
}

// FormatNextBilled renders the next billing date or NotAvailable
func FormatNextBilled(value string, loc *time.Location) string {
	if value == "" {
		return NotAvailable
	}
	return FormatTimestamp(value, loc)
}

// PlanSummary describes a plan for the confirmation step, priced in the
// preview's currency: "Pro $49.00/month".
func PlanSummary(plan Plan, currencyCode string) string {
	cents := int64(math.Round(plan.Price * 100))
	return fmt.Sprintf("%s %s/%s", plan.Product.Name, FormatCents(cents, currencyCode), plan.BillingInterval)
}

// ProrationRow is one labelled line of a proration breakdown
type ProrationRow struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

// Row labels of a proration breakdown
const (
	RowProratedCharge = "Pro-rated charge for new plan"
	RowUnusedCredit   = "Unused credit from current plan"
	RowSubtotal       = "Subtotal"
	RowTax            = "Tax"
	RowCreditApplied  = "Credit applied"
	RowDiscount       = "Discount"
	RowAmountDue      = "Amount to be paid*"
)

// ProrationRows lays out a proration for display. Charge and credit show
// their magnitude only; tax, credit applied and discount rows are omitted
// unless strictly positive.
func ProrationRows(p Proration) []ProrationRow {
	code := p.CurrencyCode
	rows := []ProrationRow{
		{Label: RowProratedCharge, Amount: FormatCents(abs(p.ProratedCharge), code)},
		{Label: RowUnusedCredit, Amount: FormatCents(abs(p.CreditAmount), code)},
		{Label: RowSubtotal, Amount: FormatCents(p.SubTotal, code)},
	}
	if p.Tax > 0 {
		rows = append(rows, ProrationRow{Label: RowTax, Amount: FormatCents(p.Tax, code)})
	}
	if p.CreditApplied > 0 {
		rows = append(rows, ProrationRow{Label: RowCreditApplied, Amount: FormatCents(p.CreditApplied, code)})
	}
	if p.Discount > 0 {
		rows = append(rows, ProrationRow{Label: RowDiscount, Amount: FormatCents(p.Discount, code)})
	}
	return append(rows, ProrationRow{Label: RowAmountDue, Amount: FormatCents(p.GrandTotal, code)})
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
