package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	VerificationTemplate = "email_verification"
	VerificationSubject  = "Verify Your Account"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Message is a rendered email ready for delivery
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers rendered messages
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer renders account emails from templates and hands them to a Sender
type Mailer struct {
	engine          *django.Engine
	sender          Sender
	baseURL         string
	verificationTTL time.Duration
	logger          Logger
}

type Option func(*Mailer)

// WithLogger overrides the logger
func WithLogger(l Logger) Option {
	return func(m *Mailer) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithVerificationTTL is shown to the recipient as the link lifetime
func WithVerificationTTL(ttl time.Duration) Option {
	return func(m *Mailer) {
		if ttl > 0 {
			m.verificationTTL = ttl
		}
	}
}

// WithTemplates replaces the embedded templates, e.g. with a directory on disk
func WithTemplates(fsys fs.FS) Option {
	return func(m *Mailer) {
		if fsys != nil {
			m.engine = django.NewFileSystem(http.FS(fsys), ".html")
		}
	}
}

// New creates a Mailer. baseURL is the public address links point to.
func New(sender Sender, baseURL string, opts ...Option) (*Mailer, error) {
	if sender == nil {
		return nil, goerrors.New("mailer requires a sender", goerrors.CategoryBadInput)
	}

	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to scope email templates")
	}

	m := &Mailer{
		engine:          django.NewFileSystem(http.FS(sub), ".html"),
		sender:          sender,
		baseURL:         strings.TrimRight(baseURL, "/"),
		verificationTTL: 24 * time.Hour,
		logger:          defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if err := m.engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load email templates")
	}

	return m, nil
}

// VerificationURL is the link the recipient follows to verify accountID
func (m *Mailer) VerificationURL(accountID uuid.UUID, token string) string {
	return fmt.Sprintf("%s/verify-email/%s/%s", m.baseURL, accountID, token)
}

// Render executes the named template with binding
func (m *Mailer) Render(name string, binding map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := m.engine.Render(&buf, name, binding); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email template").
			WithMetadata(map[string]any{"template": name})
	}
	return buf.String(), nil
}

// SendVerification renders and sends the verification email
func (m *Mailer) SendVerification(ctx context.Context, accountID uuid.UUID, email, token string) error {
	link := m.VerificationURL(accountID, token)

	body, err := m.Render(VerificationTemplate, map[string]any{
		"email":            email,
		"name":             strings.Split(email, "@")[0],
		"verification_url": link,
		"expires_in":       m.verificationTTL.String(),
	})
	if err != nil {
		return err
	}

	msg := Message{
		To:      email,
		Subject: VerificationSubject,
		HTML:    body,
	}

	if err := m.sender.Send(ctx, msg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to deliver verification email").
			WithMetadata(map[string]any{"account_id": accountID.String()})
	}

	m.logger.Debug("verification email sent", "account_id", accountID)
	return nil
}

type defLogger struct{}

func (defLogger) Debug(msg string, args ...any) {
	fmt.Println(append([]any{"[DBG] MAILER", msg}, args...)...)
}

func (defLogger) Info(msg string, args ...any) {
	fmt.Println(append([]any{"[INF] MAILER", msg}, args...)...)
}

func (defLogger) Error(msg string, args ...any) {
	fmt.Println(append([]any{"[ERR] MAILER", msg}, args...)...)
}
