// Package accounts implements the account-management core: credential
// verification with progressive lockout, token-mediated confirmation flows,
// and the scheduled reconciliation of stale account state.
//
// Login gate:
//   - AttemptLogin checks activation and block state before the password so
//     the failure counter only advances for attempts that could otherwise
//     succeed. Crossing the configured threshold blocks the account with a
//     BlockedTime stamp; administrative blocks never carry one, which is how
//     the two are told apart everywhere else.
//
// Lifecycle manager:
//   - Registration, activation, password reset, and email change are all
//     mediated by signed single-use tokens (at most one live token per kind
//     and account). Profile edits pass an expected version and fail with an
//     optimistic-lock conflict instead of silently overwriting a concurrent
//     change.
//
// Reconciler:
//   - Three independent ticker-driven sweeps expire registrations that never
//     activated, send one-shot activation reminders at the halfway mark, and
//     lift failed-login blocks once the unblock window elapses. Each sweep is
//     idempotent against already-reconciled state.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter describing login and
//     lifecycle events. Sinks run best-effort (errors are logged) so you can
//     forward to a database or queue without blocking authentication.
package accounts
