package handlers

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"weekly-expenses/internal/attachments"
	"weekly-expenses/internal/auth"
	"weekly-expenses/internal/expenses"
	"weekly-expenses/internal/log"
	"weekly-expenses/internal/models"
	"weekly-expenses/internal/storage"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
	// DefaultSessionDuration is how long sessions last unless configured (30 days).
	DefaultSessionDuration = 30 * 24 * time.Hour
)

// Options configures Handlers.
type Options struct {
	TemplateDir     string
	SecureCookie    bool
	SessionDuration time.Duration
	MaxUploadBytes  int64
	Logger          *log.Logger
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db              *storage.DB
	auth            *auth.Authenticator
	expenses        *expenses.Service
	attachments     *attachments.Resolver
	catalog         models.Catalog
	templateDir     string
	secureCookie    bool
	sessionDuration time.Duration
	maxUploadBytes  int64
	logger          *log.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *storage.DB, svc *expenses.Service, resolver *attachments.Resolver, opts Options) *Handlers {
	if opts.SessionDuration <= 0 {
		opts.SessionDuration = DefaultSessionDuration
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return &Handlers{
		db:              db,
		auth:            auth.NewAuthenticator(db),
		expenses:        svc,
		attachments:     resolver,
		catalog:         svc.Catalog(),
		templateDir:     opts.TemplateDir,
		secureCookie:    opts.SecureCookie,
		sessionDuration: opts.SessionDuration,
		maxUploadBytes:  opts.MaxUploadBytes,
		logger:          opts.Logger,
	}
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// AuthMiddleware wraps handlers to require authentication.
// It also implements rolling sessions: if a session is past the halfway point
// of its lifetime, it automatically renews the session.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		sessionInfo, err := h.db.ValidateSessionWithInfo(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				h.log(r).Error("session lookup failed", log.FieldError, err)
			}
			h.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		now := time.Now()
		if sessionInfo.ExpiresAt.Sub(now) < h.sessionDuration/2 {
			newExpiresAt := now.Add(h.sessionDuration)
			if err := h.db.RenewSession(r.Context(), cookie.Value, newExpiresAt); err == nil {
				h.setSessionCookie(w, cookie.Value)
			} else {
				// Keep serving with the current session.
				h.log(r).Warn("session renewal failed", log.FieldError, err)
			}
		}

		ctx := context.WithValue(r.Context(), UserContextKey, sessionInfo.User)
		ctx = log.WithContext(ctx, h.log(r).With(log.FieldUserID, sessionInfo.User.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoginViewModel holds data for the login page.
type LoginViewModel struct {
	Email string
	Error string
}

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	// If already logged in, redirect to expenses
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if _, err := h.db.ValidateSession(r.Context(), cookie.Value); err == nil {
			http.Redirect(w, r, "/expenses", http.StatusFound)
			return
		}
	}
	h.render(w, r, "login.html", LoginViewModel{})
}

// Login handles the login form submission.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderStatus(w, r, http.StatusBadRequest, "login.html", LoginViewModel{Error: "Invalid form submission"})
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if email == "" || password == "" {
		h.renderStatus(w, r, http.StatusUnprocessableEntity, "login.html",
			LoginViewModel{Email: email, Error: "Email and password are required"})
		return
	}

	user, err := h.auth.VerifyCredentials(r.Context(), email, password)
	if err != nil {
		if !errors.Is(err, models.ErrInvalidCredentials) {
			h.log(r).Error("credential check failed", log.FieldError, err)
		}
		h.renderStatus(w, r, http.StatusUnauthorized, "login.html",
			LoginViewModel{Email: email, Error: "Invalid email or password"})
		return
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		h.log(r).Error("failed to generate session token", log.FieldError, err)
		h.renderStatus(w, r, http.StatusInternalServerError, "login.html",
			LoginViewModel{Email: email, Error: "An error occurred. Please try again."})
		return
	}

	if err := h.db.CreateSession(r.Context(), token, user.ID, time.Now().Add(h.sessionDuration)); err != nil {
		h.log(r).Error("failed to create session", log.FieldError, err)
		h.renderStatus(w, r, http.StatusInternalServerError, "login.html",
			LoginViewModel{Email: email, Error: "An error occurred. Please try again."})
		return
	}

	h.setSessionCookie(w, token)
	h.log(r).Info("user logged in", log.FieldOperation, log.OpLogin, log.FieldUserID, user.ID)
	http.Redirect(w, r, "/expenses", http.StatusFound)
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := h.db.DeleteSession(r.Context(), cookie.Value); err != nil {
			h.log(r).Error("failed to delete session", log.FieldError, err)
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// Healthz reports whether the database is reachable.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.log(r).Error("health check failed", log.FieldError, err)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// log returns the request-scoped logger, or the handler logger outside of
// the request logging middleware.
func (h *Handlers) log(r *http.Request) *log.Logger {
	if l, ok := log.Lookup(r.Context()); ok {
		return l
	}
	return h.logger
}

func (h *Handlers) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"currencyLabel": h.catalog.CurrencyLabel,
		"categoryLabel": h.catalog.CategoryLabel,
		"date": func(t time.Time) string {
			return t.Format(models.DateLayout)
		},
		"longDate": func(t time.Time) string {
			return t.Format("Mon 2 Jan 2006")
		},
	}
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, viewName string, data any) {
	h.renderStatus(w, r, http.StatusOK, viewName, data)
}

func (h *Handlers) renderStatus(w http.ResponseWriter, r *http.Request, status int, viewName string, data any) {
	tmpl, err := template.New("base.html").Funcs(h.templateFuncs()).ParseFiles(
		filepath.Join(h.templateDir, "base.html"),
		filepath.Join(h.templateDir, viewName),
	)
	if err != nil {
		h.log(r).Error("template parse failed", "view", viewName, log.FieldError, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	target := "base.html"
	if r.Header.Get("HX-Request") == "true" {
		target = "content"
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, target, data); err != nil {
		h.log(r).Error("template execution failed", "view", viewName, log.FieldError, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
