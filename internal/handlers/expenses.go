package handlers

import (
	"bufio"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"weekly-expenses/internal/attachments"
	"weekly-expenses/internal/expenses"
	"weekly-expenses/internal/log"
	"weekly-expenses/internal/models"
)

// CategoryStyle defines the visual style for a category.
type CategoryStyle struct {
	Icon  string
	Color string
}

var categoryStyles = map[string]CategoryStyle{
	"MEALS":         {"🍽️", "#60a5fa"},
	"TRANSPORT":     {"🚌", "#a78bfa"},
	"ACCOMMODATION": {"🏨", "#818cf8"},
	"FLIGHTS":       {"✈️", "#f472b6"},
	"CAR_RENTAL":    {"🚗", "#fbbf24"},
	"OTHER":         {"📦", "#94a3b8"},
}

func getCategoryStyle(category string) CategoryStyle {
	if s, ok := categoryStyles[category]; ok {
		return s
	}
	return categoryStyles["OTHER"]
}

// ExpenseItem represents an expense in the list view.
type ExpenseItem struct {
	models.Expense
	CategoryStyle CategoryStyle
}

// ExpenseGroup groups a week's expenses by day.
type ExpenseGroup struct {
	Title string
	Date  string
	Items []ExpenseItem
}

// ListViewModel is the data passed to the list view template.
type ListViewModel struct {
	User   *models.User
	Page   *expenses.Page
	Groups []ExpenseGroup
	Newer  int
	Older  int
}

// FormValues echoes submitted or stored form fields back into the form.
type FormValues struct {
	Amount   string
	Currency string
	Category string
	Date     string
	ImageURL string
}

// FormViewModel is the data passed to the create/edit form template.
type FormViewModel struct {
	IsEdit     bool
	ID         int64
	Values     FormValues
	Attachment string
	Errors     map[string]string
	Currencies []models.Choice
	Categories []models.Choice
}

// ListExpenses renders one week of the user's expenses. A page index outside
// the user's history redirects to the first page.
func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	index, ok := pageIndex(r)
	if !ok {
		http.Redirect(w, r, "/expenses", http.StatusFound)
		return
	}

	page, clamped, err := h.expenses.ResolvePage(r.Context(), user.ID, index)
	if err != nil {
		h.log(r).Error("list expenses failed", log.FieldOperation, log.OpList, log.FieldPage, index, log.FieldError, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if clamped {
		http.Redirect(w, r, "/expenses", http.StatusFound)
		return
	}

	h.render(w, r, "list.html", ListViewModel{
		User:   user,
		Page:   page,
		Groups: groupByDay(page.Expenses),
		Newer:  page.Index - 1,
		Older:  page.Index + 1,
	})
}

// pageIndex reads ?page=N. A missing parameter is page 0.
func pageIndex(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// groupByDay keeps the incoming newest-first order.
func groupByDay(list []models.Expense) []ExpenseGroup {
	var groups []ExpenseGroup
	for _, e := range list {
		dateStr := e.Date.Format(models.DateLayout)
		if len(groups) == 0 || groups[len(groups)-1].Date != dateStr {
			groups = append(groups, ExpenseGroup{Date: dateStr, Title: formatGroupTitle(e.Date)})
		}
		g := &groups[len(groups)-1]
		g.Items = append(g.Items, ExpenseItem{Expense: e, CategoryStyle: getCategoryStyle(e.Category)})
	}
	return groups
}

// CreateExpenseForm renders the form to create a new expense.
func (h *Handlers) CreateExpenseForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "form.html", h.formView(false, 0, FormValues{
		Currency: h.catalog.Currencies[0].Code,
		Date:     time.Now().Format(models.DateLayout),
	}, "", nil))
}

// EditExpenseForm renders the form to edit an existing expense.
func (h *Handlers) EditExpenseForm(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id, ok := expenseID(r)
	if !ok {
		http.Error(w, "Expense not found", http.StatusNotFound)
		return
	}

	expense, err := h.expenses.Get(r.Context(), id, user.ID)
	if err != nil {
		h.expenseError(w, r, id, err)
		return
	}

	h.render(w, r, "form.html", h.formView(true, id, FormValues{
		Amount:   expense.Amount.String(),
		Currency: expense.Currency,
		Category: expense.Category,
		Date:     expense.Date.Format(models.DateLayout),
	}, expense.Attachment, nil))
}

// CreateExpense handles the creation of a new expense.
func (h *Handlers) CreateExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	form, cleanup, err := h.parseExpenseForm(w, r)
	defer cleanup()
	if err != nil {
		h.formError(w, r, false, 0, "", form, err)
		return
	}

	id, err := h.expenses.Create(r.Context(), user.ID, form)
	if err != nil {
		h.formError(w, r, false, 0, "", form, err)
		return
	}

	h.log(r).Info("expense created", log.FieldOperation, log.OpCreate, log.FieldExpenseID, id)
	h.redirectAfterWrite(w, r, "/expenses")
}

// UpdateExpense handles the update of an existing expense.
func (h *Handlers) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id, ok := expenseID(r)
	if !ok {
		http.Error(w, "Expense not found", http.StatusNotFound)
		return
	}

	form, cleanup, err := h.parseExpenseForm(w, r)
	defer cleanup()
	if err != nil {
		h.formError(w, r, true, id, "", form, err)
		return
	}

	updated, err := h.expenses.Update(r.Context(), id, user.ID, form)
	if err != nil {
		attachment := ""
		if current, getErr := h.expenses.Get(r.Context(), id, user.ID); getErr == nil {
			attachment = current.Attachment
		}
		h.formError(w, r, true, id, attachment, form, err)
		return
	}

	h.log(r).Info("expense updated", log.FieldOperation, log.OpUpdate, log.FieldExpenseID, updated.ID)
	h.redirectAfterWrite(w, r, "/expenses")
}

// ServeAttachment streams a stored receipt.
func (h *Handlers) ServeAttachment(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	rc, err := h.attachments.Open(r.Context(), token)
	if err != nil {
		if !errors.Is(err, attachments.ErrNotFound) {
			h.log(r).Error("open attachment failed", log.FieldToken, token, log.FieldError, err)
		}
		http.Error(w, "Attachment not found", http.StatusNotFound)
		return
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, 512)
	head, _ := br.Peek(512)
	w.Header().Set("Content-Type", http.DetectContentType(head))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, br); err != nil {
		h.log(r).Warn("attachment copy interrupted", log.FieldToken, token, log.FieldError, err)
	}
}

func expenseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// parseExpenseForm reads a multipart or urlencoded expense form. The returned
// cleanup releases any temporary upload files and is never nil.
func (h *Handlers) parseExpenseForm(w http.ResponseWriter, r *http.Request) (expenses.Form, func(), error) {
	cleanup := func() {}
	if h.maxUploadBytes > 0 {
		// Leave room for the other fields on top of the file itself.
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+64<<10)
	}

	err := r.ParseMultipartForm(1 << 20)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if r.MultipartForm != nil {
		mf := r.MultipartForm
		cleanup = func() { mf.RemoveAll() }
	}

	form := expenses.Form{
		Amount:   r.FormValue("amount"),
		Currency: r.FormValue("currency"),
		Category: r.FormValue("category"),
		Date:     r.FormValue("date"),
	}
	if err != nil {
		verr := models.NewValidationError()
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			verr.Add("attachment", "The image is too large")
		} else {
			h.log(r).Warn("malformed expense form", log.FieldError, err)
			verr.Add("form", "Invalid form submission")
		}
		return form, cleanup, verr
	}

	form.Attachment.URL = strings.TrimSpace(r.FormValue("image_url"))
	if file, ok := uploadedFile(r, "image"); ok {
		cleanup = chain(cleanup, func() { file.Close() })
		form.Attachment.Reader = file
	}
	return form, cleanup, nil
}

func uploadedFile(r *http.Request, field string) (multipart.File, bool) {
	if r.MultipartForm == nil {
		return nil, false
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 || headers[0].Filename == "" || headers[0].Size == 0 {
		return nil, false
	}
	f, err := headers[0].Open()
	if err != nil {
		return nil, false
	}
	return f, true
}

func chain(a, b func()) func() {
	return func() {
		b()
		a()
	}
}

func (h *Handlers) formView(isEdit bool, id int64, values FormValues, attachment string, errs map[string]string) FormViewModel {
	return FormViewModel{
		IsEdit:     isEdit,
		ID:         id,
		Values:     values,
		Attachment: attachment,
		Errors:     errs,
		Currencies: h.catalog.Currencies,
		Categories: h.catalog.Categories,
	}
}

// formError re-renders the form for validation problems and maps every other
// error to a status.
func (h *Handlers) formError(w http.ResponseWriter, r *http.Request, isEdit bool, id int64, attachment string, form expenses.Form, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		values := FormValues{
			Amount:   form.Amount,
			Currency: form.Currency,
			Category: form.Category,
			Date:     form.Date,
			ImageURL: form.Attachment.URL,
		}
		h.renderStatus(w, r, http.StatusUnprocessableEntity, "form.html",
			h.formView(isEdit, id, values, attachment, verr.Fields))
		return
	}
	if isEdit {
		h.expenseError(w, r, id, err)
		return
	}
	h.log(r).Error("create expense failed", log.FieldOperation, log.OpCreate, log.FieldError, err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// expenseError answers for a missing or foreign expense without telling the
// two apart.
func (h *Handlers) expenseError(w http.ResponseWriter, r *http.Request, id int64, err error) {
	switch {
	case errors.Is(err, models.ErrForbidden):
		h.log(r).Warn("access to foreign expense denied", log.FieldExpenseID, id)
		http.Error(w, "Expense not found", http.StatusNotFound)
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, "Expense not found", http.StatusNotFound)
	default:
		h.log(r).Error("expense operation failed", log.FieldExpenseID, id, log.FieldError, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handlers) redirectAfterWrite(w http.ResponseWriter, r *http.Request, path string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Location", `{"path":"`+path+`", "target":"#content"}`)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func formatGroupTitle(date time.Time) string {
	dateStr := date.Format(models.DateLayout)
	now := time.Now()

	if dateStr == now.Format(models.DateLayout) {
		return "TODAY"
	}
	if dateStr == now.AddDate(0, 0, -1).Format(models.DateLayout) {
		return "YESTERDAY"
	}
	return strings.ToUpper(date.Format("Mon, 02 Jan '06"))
}
