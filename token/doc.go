// Package token mints and verifies the purpose-scoped credentials handed out
// after a successful code verification.
//
// Credentials are JWTs signed with Ed25519 (default) or HMAC-SHA256 and come
// in two tiers: a short-lived intermediate credential for chaining a
// verification into a follow-up step, and a long-lived session credential for
// authenticated sessions. Verification is stateless: signature, expiry, and
// embedded purpose are checked without any store lookup, and a credential
// minted for one purpose is never honored for another.
package token
