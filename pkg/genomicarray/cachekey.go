package genomicarray

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

const (
	storageDir   = "storage"
	metadataFile = "_metadata.json"
	archiveFile  = "storage.gar"
	defaultKey   = "default"
)

// cacheKey joins the data tags, plus "stranded" for stranded stores, into a
// relative path below the cache root. Tags must pass checkTag; each one
// becomes exactly one path component.
func cacheKey(tags []string, stranded bool) string {
	parts := make([]string, 0, len(tags)+1)
	for _, tag := range tags {
		parts = append(parts, escapeTag(tag))
	}
	if len(parts) == 0 {
		parts = append(parts, defaultKey)
	}
	if stranded {
		parts = append(parts, "stranded")
	}
	return path.Join(parts...)
}

// escapeTag path-escapes tag and also encodes the dots of "." and "..",
// which path.Join would otherwise resolve.
func escapeTag(tag string) string {
	if strings.Trim(tag, ".") == "" {
		return strings.Repeat("%2E", len(tag))
	}
	return url.PathEscape(tag)
}

// checkTag rejects tags that cannot name a distinct cache directory: the
// empty tag, "." and "..", and the key used for untagged stores.
func checkTag(tag string) error {
	switch tag {
	case "", ".", "..":
		return fmt.Errorf("%w: invalid data tag %q", ErrInvalidConfig, tag)
	case defaultKey:
		return fmt.Errorf("%w: data tag %q is reserved for untagged stores", ErrInvalidConfig, tag)
	}
	return nil
}

// chunkPath is the location of a chromosome chunk relative to the storage
// directory.
func chunkPath(chrom string) string {
	return path.Join("data", url.PathEscape(chrom)+".chunk")
}
