package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"weekly-expenses/internal/models"
)

const expenseColumns = "id, user_id, price, currency, concept, date, attachment"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*models.Expense, error) {
	var e models.Expense
	var date string
	var attachment sql.NullString
	if err := row.Scan(&e.ID, &e.UserID, &e.Amount, &e.Currency, &e.Category, &date, &attachment); err != nil {
		return nil, err
	}
	d, err := models.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("expense %d: bad date %q: %w", e.ID, date, err)
	}
	e.Date = d
	e.Attachment = attachment.String
	return &e, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateExpense inserts a new expense owned by ownerID.
func (db *DB) CreateExpense(ctx context.Context, ownerID int64, in models.ExpenseInput) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO expenses (user_id, price, currency, concept, date, attachment) VALUES (?, ?, ?, ?, ?, ?)",
		ownerID, in.Amount, in.Currency, in.Category, in.Date.Format(models.DateLayout), nullable(in.Attachment),
	)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	return result.LastInsertId()
}

// GetExpense retrieves a single expense by ID on behalf of ownerID.
// An expense owned by someone else yields models.ErrForbidden.
func (db *DB) GetExpense(ctx context.Context, id, ownerID int64) (*models.Expense, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ?",
		id,
	)
	e, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("get expense: %w", err)
	}
	if e.UserID != ownerID {
		return nil, models.ErrForbidden
	}
	return e, nil
}

// UpdateExpense replaces every mutable field of an expense owned by ownerID.
// The ownership check and the write happen in one transaction.
func (db *DB) UpdateExpense(ctx context.Context, id, ownerID int64, in models.ExpenseInput) (*models.Expense, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	var owner int64
	err = tx.QueryRowContext(ctx, "SELECT user_id FROM expenses WHERE id = ?", id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup expense owner: %w", err)
	}
	if owner != ownerID {
		return nil, models.ErrForbidden
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE expenses SET price = ?, currency = ?, concept = ?, date = ?, attachment = ? WHERE id = ? AND user_id = ?",
		in.Amount, in.Currency, in.Category, in.Date.Format(models.DateLayout), nullable(in.Attachment), id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}

	return &models.Expense{
		ID:         id,
		UserID:     ownerID,
		Amount:     in.Amount,
		Currency:   in.Currency,
		Category:   in.Category,
		Date:       models.CivilDate(in.Date),
		Attachment: in.Attachment,
	}, nil
}

// ListExpensesByOwnerAndRange returns the owner's expenses dated within
// [start, end], newest date first. Expenses sharing a date are ordered by
// descending ID, so the most recently added comes first.
func (db *DB) ListExpensesByOwnerAndRange(ctx context.Context, ownerID int64, start, end time.Time) ([]models.Expense, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date DESC, id DESC",
		ownerID, start.Format(models.DateLayout), end.Format(models.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}

	return expenses, rows.Err()
}

// ExpenseDateRange returns the earliest and latest expense dates of ownerID.
// ok is false when the owner has no expenses.
func (db *DB) ExpenseDateRange(ctx context.Context, ownerID int64) (first, last time.Time, ok bool, err error) {
	var minDate, maxDate sql.NullString
	err = db.conn.QueryRowContext(ctx,
		"SELECT MIN(date), MAX(date) FROM expenses WHERE user_id = ?",
		ownerID,
	).Scan(&minDate, &maxDate)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("expense date range: %w", err)
	}
	if !minDate.Valid || !maxDate.Valid {
		return time.Time{}, time.Time{}, false, nil
	}

	if first, err = models.ParseDate(minDate.String); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("parse min date: %w", err)
	}
	if last, err = models.ParseDate(maxDate.String); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("parse max date: %w", err)
	}
	return first, last, true, nil
}
