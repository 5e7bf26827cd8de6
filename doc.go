// Package auth is the security and audit core of the folio admin dashboard:
// credential checks with progressive lockout, signed session tokens, a
// single request gate for the dashboard and admin API, and an append only
// audit trail of content mutations.
//
// Lockout:
//   - Authenticator counts consecutive failed logins per identity. Reaching
//     LockoutPolicy.Threshold (5 by default) locks the identity for
//     LockoutPolicy.Duration (15 minutes). A locked identity is rejected with
//     AccountLockedError before the password is checked. A successful login
//     clears the counter and the lock.
//   - CredentialStore.RecordFailure applies the increment and the lock as one
//     atomic write, see repository.Users.
//
// Sessions:
//   - TokenService signs {id, role} into an HS256 JWT with an absolute expiry.
//     Logout revokes the token id in a RevocationList until it expires.
//
// Gate:
//   - Gate resolves the session once per request. Dashboard pages under
//     UIPrefix redirect to LoginPath with a callbackUrl, admin API calls under
//     APIPrefix get a JSON 401 or 403.
//
// Audit:
//   - AuditLogger.RunAudited commits a mutation and its AuditRecord in the
//     same transaction. Feed renders the latest records for the dashboard.
//
// Activity sinks:
//   - ActivitySink receives login, logout and provisioning events. Sinks run
//     best effort (errors are logged) so they never block authentication.
package auth
