package accounts_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func testConfig() accounts.Config {
	return accounts.Config{
		SigningKey:           testSigningKey,
		Issuer:               "go-accounts-test",
		AccessTokenTTL:       30 * time.Minute,
		VerificationTokenTTL: time.Hour,
		MaxLoginAttempts:     5,
		LockCooldown:         24 * time.Hour,
		PasswordHashCost:     bcrypt.MinCost,
		BaseURL:              "http://accounts.test",
	}
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := accounts.OpenDatabase(accounts.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, accounts.Migrate(context.Background(), db))
	return db
}

// outbox captures verification tokens handed to the notifier
type outbox struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]string
	err    error
}

func newOutbox() *outbox {
	return &outbox{tokens: map[uuid.UUID]string{}}
}

func (o *outbox) SendVerification(_ context.Context, id uuid.UUID, _ string, token string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.tokens[id] = token
	return nil
}

func (o *outbox) token(id uuid.UUID) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tokens[id]
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type serviceFixture struct {
	db      *bun.DB
	repo    accounts.RepositoryManager
	service *accounts.AccountService
	outbox  *outbox
	clock   *testClock
}

func newServiceFixture(t *testing.T, cfg accounts.Config, opts ...accounts.AccountServiceOption) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		db:     newTestDB(t),
		outbox: newOutbox(),
		clock:  newTestClock(),
	}
	f.repo = accounts.NewRepositoryManager(f.db)

	base := []accounts.AccountServiceOption{
		accounts.WithNotifier(f.outbox),
		accounts.WithServiceClock(f.clock.Now),
		accounts.WithServiceLogger(quietLogger{}),
	}
	f.service = accounts.NewAccountService(cfg, f.repo, append(base, opts...)...)
	return f
}

// register creates an account and returns it together with its token
func (f *serviceFixture) register(t *testing.T, email, password string) (*accounts.Account, string) {
	t.Helper()
	account, err := f.service.Register(context.Background(), accounts.RegisterPayload{
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return account, f.outbox.token(account.ID)
}

// activate registers and verifies an account, then forces its role
func (f *serviceFixture) activate(t *testing.T, email, password string, role accounts.UserRole) *accounts.Account {
	t.Helper()
	ctx := context.Background()

	account, token := f.register(t, email, password)
	_, err := f.service.VerifyEmail(ctx, account.ID, token)
	require.NoError(t, err)

	if role != accounts.RoleAuthenticated {
		_, err = f.repo.Accounts().UpdateStatus(ctx, account.ID, accounts.StatusActive, accounts.WithRole(role))
		require.NoError(t, err)
	}

	account, err = f.repo.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	return account
}

func actorOf(a *accounts.Account) accounts.Actor {
	return accounts.Actor{ID: a.ID.String(), Email: a.Email, Role: a.Role}
}

type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

type logLine struct {
	Level string
	Msg   string
	Args  []any
}

// captureLogger records every call so tests can assert on the structured pairs
type captureLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{Level: level, Msg: msg, Args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) find(msg string) (logLine, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if line.Msg == msg {
			return line, true
		}
	}
	return logLine{}, false
}

// pairs turns key/value args into a map, failing on odd or non string keys
func (line logLine) pairs(t *testing.T) map[string]any {
	t.Helper()
	require.Zero(t, len(line.Args)%2, "args must be key/value pairs: %v", line.Args)
	out := make(map[string]any, len(line.Args)/2)
	for i := 0; i < len(line.Args); i += 2 {
		key, ok := line.Args[i].(string)
		require.True(t, ok, "key %v is not a string", line.Args[i])
		out[key] = line.Args[i+1]
	}
	return out
}
