// Package accounts implements user accounts: self registration with email
// verification, password login with lockout, and a role gated users API.
//
// Account lifecycle:
//   - Accounts move between unverified, active, locked and deleted through
//     StateMachine. Transition validates the edge, stamps timestamps and
//     persists through the Accounts repository inside the caller's
//     transaction.
//   - Login locks an account after Config.MaxLoginAttempts consecutive
//     failures. A locked account unlocks after Config.LockCooldown or through
//     AccountService.Unlock.
//
// Authorization:
//   - Roles are a set, not a ladder. Guard checks that the actor's role is a
//     member of the allowed roles for an operation. RoleSelf admits the
//     account owner regardless of role.
//
// Tokens:
//   - TokenService signs HS256 tokens. Access tokens carry the role claim,
//     verification tokens carry the target account id and are only accepted
//     by VerifyEmail.
//
// Activity sinks:
//   - ActivitySink receives registration, login and lifecycle events. Sinks
//     run best effort and their errors are only logged.
package accounts
