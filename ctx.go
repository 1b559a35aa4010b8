package accounts

import (
	"context"

	"github.com/goliatone/go-accounts/middleware/jwtware"
)

var actorCtxKey = &contextKey{"actor"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithActorContext sets the Actor in the given context
func WithActorContext(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey, actor)
}

// ActorFromContext finds the actor in the context. Missing actors resolve
// to the anonymous actor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorCtxKey).(Actor)
	return actor, ok
}

// WithClaimsContext sets the JWTClaims in the given context
func WithClaimsContext(ctx context.Context, claims *JWTClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// GetClaims extracts the JWTClaims from the standard context
func GetClaims(ctx context.Context) (*JWTClaims, bool) {
	claims, ok := ctx.Value(claimsCtxKey).(*JWTClaims)
	return claims, ok && claims != nil
}

// enrichContext is the jwtware ContextEnricher for account tokens
func enrichContext(ctx context.Context, claims jwtware.AuthClaims) context.Context {
	jc, ok := claims.(*JWTClaims)
	if !ok {
		return ctx
	}
	ctx = WithClaimsContext(ctx, jc)
	return WithActorContext(ctx, jc.Actor())
}
