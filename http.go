package accounts

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-accounts/middleware/jwtware"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const (
	DefaultContextKey  = "user"
	DefaultTokenLookup = "header:Authorization"
	DefaultAuthScheme  = "Bearer"
)

// RouteAuthenticator protects routes with bearer access tokens
type RouteAuthenticator struct {
	tokens       TokenService
	contextKey   string
	tokenLookup  string
	authScheme   string
	Logger       Logger
	ErrorHandler router.ErrorHandler
}

// NewRouteAuthenticator creates a RouteAuthenticator. errorHandler renders
// the rejection, usually the controller's ErrorHandler.
func NewRouteAuthenticator(tokens TokenService, errorHandler router.ErrorHandler) *RouteAuthenticator {
	a := &RouteAuthenticator{
		tokens:       tokens,
		contextKey:   DefaultContextKey,
		tokenLookup:  DefaultTokenLookup,
		authScheme:   DefaultAuthScheme,
		Logger:       defLogger{},
		ErrorHandler: errorHandler,
	}
	if a.ErrorHandler == nil {
		a.ErrorHandler = NewErrorHandler(a.Logger, nil)
	}
	return a
}

// ContextKey is the router Locals key holding the validated claims
func (a *RouteAuthenticator) ContextKey() string {
	return a.contextKey
}

// ProtectedRoute rejects requests without a valid access token and stores
// the claims under ContextKey
func (a *RouteAuthenticator) ProtectedRoute() router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ErrorHandler:    a.authErrorHandler,
		ContextKey:      a.contextKey,
		TokenLookup:     a.tokenLookup,
		AuthScheme:      a.authScheme,
		TokenValidator:  bearerValidator{tokens: a.tokens},
		ContextEnricher: enrichContext,
	})
}

// authErrorHandler collapses every token failure into ErrUnauthenticated
func (a *RouteAuthenticator) authErrorHandler(c router.Context, err error) error {
	a.Logger.Debug("bearer authentication failed", "path", c.Path(), "error", err)
	if errors.Is(err, jwtware.ErrForbidden) {
		return a.ErrorHandler(c, ErrUnauthorized)
	}
	return a.ErrorHandler(c, ErrUnauthenticated)
}

// ActorFromContext resolves the caller stored by ProtectedRoute. Requests
// without claims resolve to the anonymous actor.
func (a *RouteAuthenticator) ActorFromContext(c router.Context) Actor {
	if claims, ok := c.Locals(a.contextKey).(*JWTClaims); ok && claims != nil {
		return claims.Actor()
	}
	if actor, ok := ActorFromContext(c.Context()); ok {
		return actor
	}
	return Actor{}
}

type bearerValidator struct {
	tokens TokenService
}

// Validate accepts access tokens only
func (v bearerValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := v.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeAccess {
		return nil, ErrInvalidOrExpiredToken
	}
	return claims, nil
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Detail string      `json:"detail"`
	Code   string      `json:"code,omitempty"`
	Errors FieldErrors `json:"errors,omitempty"`
}

// NewErrorHandler renders errors as ErrorResponse with the status carried
// by the rich error. Internal failures are logged, reported to onInternal
// and returned without detail.
func NewErrorHandler(logger Logger, onInternal func(c router.Context, err error)) router.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(c router.Context, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.JSON(fiberErr.Code, ErrorResponse{Detail: fiberErr.Message})
		}

		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			richErr = NewInternalError(err, "Internal server error")
		}

		status := statusFor(richErr)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
			if onInternal != nil {
				onInternal(c, err)
			}
			return c.JSON(status, ErrorResponse{
				Detail: "Internal server error",
				Code:   TextCodeInternal,
			})
		}

		return c.JSON(status, ErrorResponse{
			Detail: richErr.Message,
			Code:   richErr.TextCode,
			Errors: ValidationFields(richErr),
		})
	}
}

func statusFor(err *goerrors.Error) int {
	if err.Code >= 400 && err.Code < 600 {
		return err.Code
	}

	switch err.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput, goerrors.CategoryConflict:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
