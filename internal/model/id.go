package model

import "github.com/oklog/ulid/v2"

// NewID returns a fresh ULID string. Transfer handles and fetch records use
// these as identifiers; the lexicographic ordering matches creation time.
func NewID() string {
	return ulid.Make().String()
}
