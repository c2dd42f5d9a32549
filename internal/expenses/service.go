// Package expenses validates expense forms and serves a user's history one
// calendar week at a time.
package expenses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"weekly-expenses/internal/attachments"
	"weekly-expenses/internal/models"
	"weekly-expenses/internal/money"
)

// Store is the owner-scoped expense persistence.
type Store interface {
	CreateExpense(ctx context.Context, ownerID int64, in models.ExpenseInput) (int64, error)
	GetExpense(ctx context.Context, id, ownerID int64) (*models.Expense, error)
	UpdateExpense(ctx context.Context, id, ownerID int64, in models.ExpenseInput) (*models.Expense, error)
	ListExpensesByOwnerAndRange(ctx context.Context, ownerID int64, start, end time.Time) ([]models.Expense, error)
	ExpenseDateRange(ctx context.Context, ownerID int64) (first, last time.Time, ok bool, err error)
}

// AttachmentStore persists receipts and returns their tokens.
type AttachmentStore interface {
	Store(ctx context.Context, src attachments.Source) (string, error)
}

// Form is the raw user input for adding or editing an expense.
type Form struct {
	Amount     string
	Currency   string
	Category   string
	Date       string
	Attachment attachments.Source
}

// Service implements the expense operations on behalf of an owner.
type Service struct {
	store       Store
	attachments AttachmentStore
	catalog     models.Catalog
}

// NewService creates a Service.
func NewService(store Store, att AttachmentStore, catalog models.Catalog) *Service {
	return &Service{store: store, attachments: att, catalog: catalog}
}

// Catalog returns the enumerations forms are validated against.
func (s *Service) Catalog() models.Catalog {
	return s.catalog
}

// Create validates f, stores its attachment if any and records the expense.
func (s *Service) Create(ctx context.Context, ownerID int64, f Form) (int64, error) {
	in, err := s.validate(f)
	if err != nil {
		return 0, err
	}
	if in.Attachment, err = s.storeAttachment(ctx, f.Attachment); err != nil {
		return 0, err
	}
	return s.store.CreateExpense(ctx, ownerID, in)
}

// Update replaces the fields of an expense owned by ownerID. When f carries
// no attachment the current one is kept.
func (s *Service) Update(ctx context.Context, id, ownerID int64, f Form) (*models.Expense, error) {
	in, err := s.validate(f)
	if err != nil {
		return nil, err
	}

	current, err := s.store.GetExpense(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	in.Attachment = current.Attachment
	if !f.Attachment.Empty() {
		if in.Attachment, err = s.storeAttachment(ctx, f.Attachment); err != nil {
			return nil, err
		}
	}
	return s.store.UpdateExpense(ctx, id, ownerID, in)
}

// Get returns an expense owned by ownerID.
func (s *Service) Get(ctx context.Context, id, ownerID int64) (*models.Expense, error) {
	return s.store.GetExpense(ctx, id, ownerID)
}

func (s *Service) validate(f Form) (models.ExpenseInput, error) {
	var in models.ExpenseInput
	verr := models.NewValidationError()

	amount, err := money.ParseAmount(f.Amount)
	if err != nil {
		verr.Add("amount", "Enter an amount such as 12.50")
	}
	in.Amount = amount

	in.Currency = strings.TrimSpace(f.Currency)
	if !s.catalog.HasCurrency(in.Currency) {
		verr.Add("currency", "Choose one of the listed currencies")
	}

	in.Category = strings.TrimSpace(f.Category)
	if !s.catalog.HasCategory(in.Category) {
		verr.Add("category", "Choose one of the listed categories")
	}

	date, err := models.ParseDate(strings.TrimSpace(f.Date))
	if err != nil {
		verr.Add("date", "Enter a valid date (YYYY-MM-DD)")
	}
	in.Date = date

	return in, verr.OrNil()
}

func (s *Service) storeAttachment(ctx context.Context, src attachments.Source) (string, error) {
	if src.Empty() {
		return "", nil
	}
	token, err := s.attachments.Store(ctx, src)
	if err == nil {
		return token, nil
	}

	verr := models.NewValidationError()
	switch {
	case errors.Is(err, attachments.ErrTooLarge):
		verr.Add("attachment", "The image is too large")
	case errors.Is(err, attachments.ErrInvalidURL):
		verr.Add("attachment", "The image URL must start with http:// or https://")
	case errors.Is(err, attachments.ErrFetch):
		verr.Add("attachment", "The image could not be downloaded")
	default:
		return "", fmt.Errorf("store attachment: %w", err)
	}
	return "", verr
}
