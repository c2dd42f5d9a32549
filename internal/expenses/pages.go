package expenses

import (
	"context"
	"fmt"

	"weekly-expenses/internal/models"
	"weekly-expenses/internal/money"
	"weekly-expenses/internal/weeks"
)

// Total is the sum of a page's expenses in one currency.
type Total struct {
	Currency string
	Amount   money.Amount
}

// Page is one calendar week of an owner's expenses. Index 0 is the most
// recent week that has an expense.
type Page struct {
	Index    int
	Count    int // number of pages the owner has
	Bucket   weeks.Bucket
	Expenses []models.Expense
	Totals   []Total
}

// Empty reports whether the owner has no expenses at all.
func (p *Page) Empty() bool {
	return p.Count == 0
}

// HasNewer reports whether a more recent week exists.
func (p *Page) HasNewer() bool {
	return p.Index > 0
}

// HasOlder reports whether an older week exists.
func (p *Page) HasOlder() bool {
	return p.Index+1 < p.Count
}

// Pages returns the weeks spanning the owner's history, most recent first.
// An owner without expenses has no pages.
func (s *Service) Pages(ctx context.Context, ownerID int64) ([]weeks.Bucket, error) {
	first, last, ok, err := s.store.ExpenseDateRange(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return weeks.Span(first, last), nil
}

// Page returns week index of the owner's history, or models.ErrOutOfRange.
func (s *Service) Page(ctx context.Context, ownerID int64, index int) (*Page, error) {
	buckets, err := s.Pages(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(buckets) {
		return nil, fmt.Errorf("%w: page %d of %d", models.ErrOutOfRange, index, len(buckets))
	}
	return s.load(ctx, ownerID, buckets, index)
}

// ResolvePage is Page with the fallback applied: an index outside the
// owner's history yields page 0, and an owner without expenses gets an empty
// page 0. clamped reports that index was replaced.
func (s *Service) ResolvePage(ctx context.Context, ownerID int64, index int) (page *Page, clamped bool, err error) {
	buckets, err := s.Pages(ctx, ownerID)
	if err != nil {
		return nil, false, err
	}
	if index < 0 || index >= len(buckets) {
		clamped = index != 0
		index = 0
	}
	if len(buckets) == 0 {
		return &Page{}, clamped, nil
	}
	page, err = s.load(ctx, ownerID, buckets, index)
	return page, clamped, err
}

func (s *Service) load(ctx context.Context, ownerID int64, buckets []weeks.Bucket, index int) (*Page, error) {
	bucket := buckets[index]
	list, err := s.store.ListExpensesByOwnerAndRange(ctx, ownerID, bucket.Start, bucket.End)
	if err != nil {
		return nil, err
	}
	return &Page{
		Index:    index,
		Count:    len(buckets),
		Bucket:   bucket,
		Expenses: list,
		Totals:   s.totals(list),
	}, nil
}

// totals sums per currency, in catalog order.
func (s *Service) totals(list []models.Expense) []Total {
	sums := make(map[string]money.Amount)
	for _, e := range list {
		sums[e.Currency] = sums[e.Currency].Add(e.Amount)
	}

	var out []Total
	for _, c := range s.catalog.Currencies {
		if sum, ok := sums[c.Code]; ok {
			out = append(out, Total{Currency: c.Code, Amount: sum})
		}
	}
	return out
}
