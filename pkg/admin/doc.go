// Package admin decides whether a user may use the operator endpoints.
//
// The profile flag wins; when the profile cannot be read or does not mark
// the user, the ADMIN_USER_IDS allowlist is consulted.
package admin
