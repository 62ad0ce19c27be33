package catalog

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CurrencySymbol prefixes every displayed price.
const CurrencySymbol = "₦"

// RelatedLimit caps the related products shown on a detail page.
const RelatedLimit = 4

// Product mirrors the backend product document.
type Product struct {
	ID        string          `json:"_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Category  string          `json:"category"`
	Details   string          `json:"details"`
	Image     string          `json:"image"`
	SubImage1 string          `json:"subimage1"`
	SubImage2 string          `json:"subimage2"`
	SubImage3 string          `json:"subimage3"`
	Slug      string          `json:"slug"`
	CatSlug   string          `json:"catslug"`
}

// Images lists the primary image followed by the secondary images.
func (p Product) Images() []string {
	return []string{p.Image, p.SubImage1, p.SubImage2, p.SubImage3}
}

// DisplayPrice formats the price as "₦ 1,234,567.5".
func (p Product) DisplayPrice() string {
	return CurrencySymbol + " " + FormatAmount(p.Price)
}

var maxGrouped = decimal.NewFromInt(math.MaxInt64)

// FormatAmount renders d with thousands separators and at most two decimals,
// trailing zeros trimmed. Digits come from the decimal itself so large
// amounts keep every digit; whole parts past int64 are left ungrouped.
func FormatAmount(d decimal.Decimal) string {
	r := d.Round(2)
	sign := ""
	if r.IsNegative() {
		sign = "-"
		r = r.Neg()
	}
	whole, frac, _ := strings.Cut(r.StringFixed(2), ".")
	frac = strings.TrimRight(frac, "0")
	if r.LessThanOrEqual(maxGrouped) {
		whole = message.NewPrinter(language.English).Sprintf("%v", number.Decimal(r.IntPart()))
	}
	if frac == "" {
		return sign + whole
	}
	return sign + whole + "." + frac
}

// Related drops current from candidates by ID, keeps the backend order and
// returns at most limit products. A non-positive limit means RelatedLimit.
func Related(current Product, candidates []Product, limit int) []Product {
	if limit <= 0 {
		limit = RelatedLimit
	}
	out := make([]Product, 0, min(limit, len(candidates)))
	for _, p := range candidates {
		if p.ID == current.ID {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out
}

// HasRelated reports whether a category listing holds anything besides the
// product being viewed.
func HasRelated(candidates []Product) bool {
	return len(candidates) > 1
}
