package accounts

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService issues and validates signed, time limited tokens
type TokenService interface {
	Issue(subject, accountID string, role UserRole, ttl time.Duration) (string, error)
	Validate(tokenString string) (*JWTClaims, error)
	IssueVerification(accountID uuid.UUID, email string, ttl time.Duration) (string, error)
	ValidateVerification(tokenString string, pathID uuid.UUID) (*JWTClaims, error)
}

// TokenServiceImpl implements TokenService with HS256 JWTs
type TokenServiceImpl struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
	logger     Logger
}

// TokenServiceOption customizes the token service
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock injects a custom clock (useful for tests).
func WithTokenClock(clock func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// WithTokenLogger overrides the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, issuer string, opts ...TokenServiceOption) *TokenServiceImpl {
	ts := &TokenServiceImpl{
		signingKey: signingKey,
		issuer:     issuer,
		now:        time.Now,
		logger:     defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

// Issue signs an access token for subject carrying the role claim
func (ts *TokenServiceImpl) Issue(subject, accountID string, role UserRole, ttl time.Duration) (string, error) {
	claims := ts.newClaims(subject, ttl)
	claims.UID = accountID
	claims.UserRole = string(role)
	claims.Purpose = PurposeAccess
	return ts.SignClaims(claims)
}

// IssueVerification signs a token bound to accountID for email verification
func (ts *TokenServiceImpl) IssueVerification(accountID uuid.UUID, email string, ttl time.Duration) (string, error) {
	claims := ts.newClaims(email, ttl)
	claims.UID = accountID.String()
	claims.Purpose = PurposeVerification
	claims.TargetID = accountID.String()
	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", NewInternalError(err, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses tokenString. The signature is checked before expiry.
func (ts *TokenServiceImpl) Validate(tokenString string) (*JWTClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token service unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		return nil, classifyTokenError(err)
	}

	if !token.Valid {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// ValidateVerification validates a verification token against the account
// id taken from the request path. A target mismatch is reported even when
// the signature does not verify.
func (ts *TokenServiceImpl) ValidateVerification(tokenString string, pathID uuid.UUID) (*JWTClaims, error) {
	unverified := &JWTClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, unverified); err != nil {
		return nil, ErrTokenMalformed
	}

	if unverified.TargetID != pathID.String() {
		return nil, ErrTargetMismatch
	}

	claims, err := ts.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.Purpose != PurposeVerification {
		return nil, ErrInvalidOrExpiredToken
	}

	return claims, nil
}

func (ts *TokenServiceImpl) newClaims(subject string, ttl time.Duration) *JWTClaims {
	now := ts.now()
	return &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func classifyTokenError(err error) error {
	switch {
	case goerrors.Is(err, jwt.ErrTokenSignatureInvalid), goerrors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenSignatureInvalid
	case goerrors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case goerrors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return ErrInvalidOrExpiredToken
	}
}

// IsTokenError reports whether err is any of the token failures
func IsTokenError(err error) bool {
	for _, code := range []string{
		TextCodeInvalidToken,
		TextCodeTokenExpired,
		TextCodeTokenSignature,
		TextCodeTokenMalformed,
		TextCodeTargetMismatch,
	} {
		if HasTextCode(err, code) {
			return true
		}
	}
	return false
}
