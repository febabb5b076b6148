// Package auth provides token authentication and authorisation for the
// climate control API.
//
// Callers present an HS256 JWT signed with the configured secret. The
// token carries one of three roles (viewer → operator → admin), and each
// role maps to a static set of permissions:
//   - viewer reads states, history and automation runs
//   - operator also calls services
//   - admin also runs config flows and removes config entries
//
// Tokens are issued offline with cmd/climatetoken; there is no user
// database.
package auth
