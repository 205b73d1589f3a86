package room

import "uzenet/internal/identity"

// UserAuthenticator resolves the room server's 8-byte login key (spec.md
// §4.3.1's USER_KEY_LEN) to a user record by scanning for an exact,
// unencrypted match against each record's password hash. This is a
// distinct protocol from the identity daemon's own 6-byte short-key oracle
// (spec.md §4.2, served over /run/uzenet/identity.sock by cmd/uzenet-
// identityd for other external consumers): the room server never dials
// that socket for login, it holds its own in-process snapshot of the same
// CSV-backed table and scans it directly, matching "scan registered users
// for an exact unencrypted match" literally rather than routing it through
// a narrower name-to-id oracle built for a different key length.
type UserAuthenticator interface {
	LookupUnencrypted(key string) (*identity.Record, bool)
}

// *identity.Table already satisfies UserAuthenticator via its own
// LookupUnencrypted method; no adapter type is needed.
var _ UserAuthenticator = (*identity.Table)(nil)
