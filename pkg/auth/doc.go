// Package auth provides the identity primitives for warden: accounts, the
// closed role set, password hashing and signed session tokens.
//
// # Roles and capabilities
//
// Roles form a closed set. Each role maps to a fixed list of capabilities and
// callers check capabilities, not role names:
//
//	if !principal.Can(auth.CapabilityReadSecurityLog) {
//		return ErrForbidden
//	}
//
// ParseRoleName rejects any name read from storage that is not in the set.
//
// # Passwords
//
// Hasher wraps bcrypt at DefaultCost (12):
//
//	hasher := auth.NewHasher(auth.DefaultCost)
//	hash, err := hasher.Hash("s3cret-password")
//	ok := hasher.Verify("s3cret-password", hash)
//
// Verify never returns an error; a malformed hash simply does not match.
//
// # Session tokens
//
// TokenCodec issues HS256 JWTs carrying account_id, role, status and email,
// with a seven day expiry and a random jti:
//
//	codec, err := auth.NewTokenCodec(secret, auth.DefaultTokenTTL)
//	token, err := codec.Issue(auth.Claims{AccountID: 7, Role: auth.RoleUser, Status: auth.StatusActive})
//	claims, err := codec.Verify(token) // errors.Is(err, auth.ErrInvalidToken) on any failure
//
// A token that verifies is not yet a session. The session store must still
// hold its record; see package sessions.
package auth
