package utils

import "github.com/google/uuid"

// GenerateID returns a prefixed random identifier, e.g. "bid_3f2a...".
func GenerateID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
