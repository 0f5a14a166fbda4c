package session

import "errors"

var (
	// ErrInvalidToken means the presented refresh token string is not in
	// the session store (never issued, already rotated, or revoked).
	ErrInvalidToken = errors.New("refresh token not found")
	// ErrExpiredToken means the token was found but its TTL had passed.
	// The row is still consumed: a leaked expired token must not remain
	// redeemable.
	ErrExpiredToken = errors.New("refresh token expired")
	// ErrAccessDenied means the token exists but belongs to someone else,
	// or its owning account no longer resolves.
	ErrAccessDenied = errors.New("access denied")
)
