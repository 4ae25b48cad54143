// Package identity turns license plates into participant identifiers and
// derives the conversation key shared by client and server.
package identity

import (
	"strings"

	"github.com/cartalks/backend/internal/apperror"
)

// KeySeparator joins the two participants of a conversation key. Normalized
// identifiers never contain it.
const KeySeparator = "_"

// MaxIdentifierLength bounds a normalized identifier. MaxKeyLength follows
// from it.
const (
	MaxIdentifierLength = 32
	MaxKeyLength        = 2*MaxIdentifierLength + len(KeySeparator)
)

// Normalize uppercases id and drops every character outside [A-Z0-9].
func Normalize(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range strings.ToUpper(id) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validate normalizes id and rejects it when nothing is left or it is longer
// than MaxIdentifierLength.
func Validate(id string) (string, error) {
	n := Normalize(id)
	if n == "" {
		return "", apperror.ErrInvalidIdentifier
	}
	if len(n) > MaxIdentifierLength {
		return "", apperror.InvalidIdentifier("identifier too long")
	}
	return n, nil
}

// ConversationKey returns the order-independent key for the pair a, b.
func ConversationKey(a, b string) (string, error) {
	na, err := Validate(a)
	if err != nil {
		return "", err
	}
	nb, err := Validate(b)
	if err != nil {
		return "", err
	}
	if na == nb {
		return "", apperror.InvalidIdentifier("a conversation needs two different participants")
	}
	if nb < na {
		na, nb = nb, na
	}
	return na + KeySeparator + nb, nil
}

// SplitKey is the inverse of ConversationKey. It only accepts keys that are
// already canonical.
func SplitKey(key string) (string, string, error) {
	parts := strings.Split(key, KeySeparator)
	if len(parts) != 2 {
		return "", "", apperror.InvalidIdentifier("malformed conversation id")
	}
	canonical, err := ConversationKey(parts[0], parts[1])
	if err != nil {
		return "", "", err
	}
	if canonical != key {
		return "", "", apperror.InvalidIdentifier("conversation id is not canonical")
	}
	return parts[0], parts[1], nil
}

// Participants returns both sides of key in key order.
func Participants(key string) ([2]string, error) {
	a, b, err := SplitKey(key)
	if err != nil {
		return [2]string{}, err
	}
	return [2]string{a, b}, nil
}

// Other returns the participant of key that is not id.
func Other(key, id string) (string, error) {
	a, b, err := SplitKey(key)
	if err != nil {
		return "", err
	}
	switch Normalize(id) {
	case a:
		return b, nil
	case b:
		return a, nil
	default:
		return "", apperror.Forbidden("not a participant of this conversation")
	}
}

// IsParticipant reports whether id is one side of key.
func IsParticipant(key, id string) bool {
	_, err := Other(key, id)
	return err == nil
}
