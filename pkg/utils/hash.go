package utils

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

func HashString(input string) string {
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// HashDataset produces a stable fingerprint for an imported dataset.
// Rows are sorted first so import order does not change the hash.
func HashDataset(rows []string) string {
	sorted := make([]string, len(rows))
	copy(sorted, rows)
	sort.Strings(sorted)
	return HashString(strings.Join(sorted, "\n"))
}
