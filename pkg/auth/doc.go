// Package auth authenticates API requests with HS256 access tokens issued
// by the managed auth service, and guards internal endpoints with a shared
// bearer secret.
//
// Verified claims are stored in the request context; handlers read the
// caller with UserIDFromContext or ClaimsFromContext.
package auth
