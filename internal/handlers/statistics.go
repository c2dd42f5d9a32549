package handlers

import (
	"net/http"

	"weekly-expenses/internal/expenses"
	"weekly-expenses/internal/log"
	"weekly-expenses/internal/money"

	"github.com/shopspring/decimal"
)

// StatsCategoryItem represents a category with its spending in one currency.
type StatsCategoryItem struct {
	Category      string
	Total         money.Amount
	Count         int
	Percentage    float64
	CategoryStyle CategoryStyle
}

// StatsCurrency breaks one currency's weekly total down by category.
type StatsCurrency struct {
	Currency   string
	Total      money.Amount
	Categories []StatsCategoryItem
}

// StatsViewModel is the data passed to the statistics view template.
type StatsViewModel struct {
	Page       *expenses.Page
	Currencies []StatsCurrency
	Newer      int
	Older      int
}

// Statistics renders per-category totals for one week. Amounts in different
// currencies are never added together.
func (h *Handlers) Statistics(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	index, ok := pageIndex(r)
	if !ok {
		http.Redirect(w, r, "/expenses/stats", http.StatusFound)
		return
	}

	page, clamped, err := h.expenses.ResolvePage(r.Context(), user.ID, index)
	if err != nil {
		h.log(r).Error("statistics failed", log.FieldPage, index, log.FieldError, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if clamped {
		http.Redirect(w, r, "/expenses/stats", http.StatusFound)
		return
	}

	h.render(w, r, "stats.html", StatsViewModel{
		Page:       page,
		Currencies: h.categoryTotals(page),
		Newer:      page.Index - 1,
		Older:      page.Index + 1,
	})
}

// categoryTotals groups a page by currency, then by category, both in
// catalog order.
func (h *Handlers) categoryTotals(page *expenses.Page) []StatsCurrency {
	type key struct{ currency, category string }
	sums := make(map[key]money.Amount)
	counts := make(map[key]int)
	for _, e := range page.Expenses {
		k := key{e.Currency, e.Category}
		sums[k] = sums[k].Add(e.Amount)
		counts[k]++
	}

	var out []StatsCurrency
	for _, total := range page.Totals {
		sc := StatsCurrency{Currency: total.Currency, Total: total.Amount}
		for _, cat := range h.catalog.Categories {
			k := key{total.Currency, cat.Code}
			if counts[k] == 0 {
				continue
			}
			sc.Categories = append(sc.Categories, StatsCategoryItem{
				Category:      cat.Code,
				Total:         sums[k],
				Count:         counts[k],
				Percentage:    percentage(sums[k], total.Amount),
				CategoryStyle: getCategoryStyle(cat.Code),
			})
		}
		out = append(out, sc)
	}
	return out
}

func percentage(part, whole money.Amount) float64 {
	if whole.IsZero() {
		return 0
	}
	p, _ := part.Decimal().Div(whole.Decimal()).Mul(decimal.NewFromInt(100)).Round(1).Float64()
	return p
}
