package accounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Logger takes a message followed by key/value pairs, matching glog.Logger
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Actor is the authenticated caller resolved from an access token
type Actor struct {
	ID    string
	Email string
	Role  UserRole
}

// IsAnonymous reports whether the actor carries no identity
func (a Actor) IsAnonymous() bool {
	return a.ID == "" && a.Email == ""
}

// Notifier delivers account notifications. Delivery is best-effort from
// the point of view of the caller.
type Notifier interface {
	SendVerification(ctx context.Context, accountID uuid.UUID, email, token string) error
}

// NotifierFunc adapts a function into a Notifier.
type NotifierFunc func(ctx context.Context, accountID uuid.UUID, email, token string) error

// SendVerification implements Notifier.
func (f NotifierFunc) SendVerification(ctx context.Context, accountID uuid.UUID, email, token string) error {
	if f == nil {
		return nil
	}
	return f(ctx, accountID, email, token)
}

type noopNotifier struct{}

func (noopNotifier) SendVerification(context.Context, uuid.UUID, string, string) error {
	return nil
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print(formatLine("[ERR] ACCOUNTS", msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print(formatLine("[WRN] ACCOUNTS", msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print(formatLine("[INF] ACCOUNTS", msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print(formatLine("[DBG] ACCOUNTS", msg, args...))
}

// formatLine renders msg followed by key=value pairs. A trailing key
// without value is printed as !BADKEY like slog does.
func formatLine(prefix, msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte(' ')
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		b.WriteByte(' ')
		if i+1 >= len(args) {
			fmt.Fprintf(&b, "!BADKEY=%v", args[i])
			break
		}
		fmt.Fprintf(&b, "%v=%v", args[i], args[i+1])
	}
	b.WriteByte('\n')
	return b.String()
}
