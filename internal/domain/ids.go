package domain

import "github.com/google/uuid"

// IsValidIdentifier reports whether s is a canonical version 4 UUID string.
// The parsed value must render back to exactly s, so upper case, braces,
// urn prefixes and hyphen-less forms are rejected.
func IsValidIdentifier(s string) bool {
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	if id.Version() != 4 || id.Variant() != uuid.RFC4122 {
		return false
	}
	return id.String() == s
}

// ParseIdentifier parses s as a task identifier.
// Returns a *ValidationError wrapping ErrInvalidID if s is not canonical.
func ParseIdentifier(field, s string) (uuid.UUID, error) {
	if !IsValidIdentifier(s) {
		return uuid.Nil, NewValidationError(field, "has invalid format", ErrInvalidID)
	}
	return uuid.MustParse(s), nil
}
