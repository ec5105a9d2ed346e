// Package auth verifies bearer JWTs and enforces scopes on API routes.
//
// Tokens are signed either with a shared secret (HS256) or an RSA key whose
// public half is configured as PEM (RS256). They must carry a "sub" claim and
// a non-empty "scopes" array drawn from derive, converse, read and telemetry.
package auth
