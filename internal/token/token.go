// Package token implements the session credential codec.
//
// A session token is the standard base64 encoding of the raw bytes of the
// user's UUID string. There is no signature, no expiry and no secret key:
// anyone who knows (or can guess) an existing user identifier can mint a
// valid token. The codec is kept in this form for wire compatibility with
// existing clients; it must not be mistaken for an authentication scheme.
package token

import (
	"encoding/base64"
	"errors"
	"regexp"
)

// ErrMalformedToken is returned when a token cannot be decoded or the
// decoded value is not shaped like a version-4 UUID.
var ErrMalformedToken = errors.New("malformed token")

// ErrUnknownSubject is returned by callers who look up the decoded subject
// and find no matching user record.
var ErrUnknownSubject = errors.New("unknown subject")

// Canonical v4 UUID: 32 hex digits grouped 8-4-4-4-12, version nibble 4,
// variant nibble in {8,9,a,b}.
var subjectShape = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// Issue encodes a user identifier into a bearer token.
func Issue(userID string) string {
	return base64.StdEncoding.EncodeToString([]byte(userID))
}

// Decode reverses Issue and enforces the subject shape. It does not check
// that the subject exists; that lookup belongs to the domain layer.
func Decode(tok string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(tok)
	if err != nil {
		return "", ErrMalformedToken
	}
	subject := string(raw)
	if !subjectShape.MatchString(subject) {
		return "", ErrMalformedToken
	}
	return subject, nil
}
