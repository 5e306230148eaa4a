// Package accounts implements the account lifecycle and access control core
// of a multi role booking marketplace (clients, photographers, moderators and
// administrators).
//
// Account lifecycle:
//   - Accounts carry two flags, Active and Registered, plus a failed login
//     counter. Manager owns every transition: registration, confirmation,
//     lockout after LockoutThreshold consecutive failures, status changes,
//     password changes and resets, profile and email changes.
//   - Every operation reads the current aggregate inside one Store
//     transaction and writes through versioned updates. A lost race surfaces
//     as ErrOptimisticConflict; wrap calls with RetryOnConflict to re read and
//     retry.
//
// Access levels:
//   - AccessLevelRegistry holds the catalog (CLIENT, PHOTOGRAPHER, MODERATOR,
//     ADMINISTRATOR) and toggles per account assignments. Rows are created on
//     first grant and flipped afterwards, never deleted.
//
// Verification tokens:
//   - Registration confirmation, password reset, email change and account
//     unblock go through single use, expiring tokens. Only the SHA-256 hash
//     of a value is stored; the raw value is handed to the Notifier once.
//
// Notifications and activity:
//   - Notifier receives lifecycle events after commit, so a rolled back
//     operation never notifies. ActivitySink receives audit events for
//     logins, password and profile changes. Both run best effort.
//
// Adapters live in sub packages: memstore (in memory Store), repository (bun
// Store for sqlite and postgres), redistokens (redis TokenRepository), notify
// (email and log notifiers) and authz (caller capability checks).
package accounts
