package domain

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DigestPrefix names the hash algorithm of a lockfile digest.
const DigestPrefix = "xxh64:"

// ComputeDigest creates a deterministic fingerprint of a set of pinned versions.
// Entries are hashed as sorted "id@version" lines, so map order never matters.
func ComputeDigest(versions map[ConnectorID]Version) string {
	var builder strings.Builder
	for _, entry := range sortedEntries(versions) {
		builder.WriteString(entry.String())
		builder.WriteString("\n")
	}
	return fmt.Sprintf("%s%016x", DigestPrefix, xxhash.Sum64String(builder.String()))
}
