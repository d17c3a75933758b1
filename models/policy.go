package models

import (
	"fmt"
	"strings"
)

// InclusionPolicy decides which downloaded assets must exist on disk for a
// book to be written to the manifest.
type InclusionPolicy string

const (
	IncludeRequireText  InclusionPolicy = "text"
	IncludeRequireCover InclusionPolicy = "cover"
	IncludeRequireAny   InclusionPolicy = "any"
	IncludeAlways       InclusionPolicy = "none"
)

// ParseInclusionPolicy converts a flag value to an InclusionPolicy.
// An empty string selects IncludeRequireText.
func ParseInclusionPolicy(s string) (InclusionPolicy, error) {
	switch p := InclusionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return IncludeRequireText, nil
	case IncludeRequireText, IncludeRequireCover, IncludeRequireAny, IncludeAlways:
		return p, nil
	default:
		return "", fmt.Errorf("unknown inclusion policy %q (want text, cover, any or none)", s)
	}
}

// Admits reports whether a book passes the policy given which of its files
// were verified present.
func (p InclusionPolicy) Admits(hasText, hasCover bool) bool {
	switch p {
	case IncludeRequireCover:
		return hasCover
	case IncludeRequireAny:
		return hasText || hasCover
	case IncludeAlways:
		return true
	default:
		return hasText
	}
}

// ManifestMode selects how the manifest file is written when it already exists.
type ManifestMode string

const (
	// ManifestTruncate replaces the file.
	ManifestTruncate ManifestMode = "truncate"
	// ManifestMerge reads the existing array and rewrites it with the new
	// entries appended.
	ManifestMerge ManifestMode = "merge"
	// ManifestAppend appends the new array as raw bytes. Repeated runs
	// produce concatenated JSON documents.
	ManifestAppend ManifestMode = "append"
)

// ParseManifestMode converts a flag value to a ManifestMode.
// An empty string selects ManifestTruncate.
func ParseManifestMode(s string) (ManifestMode, error) {
	switch m := ManifestMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ManifestTruncate, nil
	case ManifestTruncate, ManifestMerge, ManifestAppend:
		return m, nil
	default:
		return "", fmt.Errorf("unknown manifest mode %q (want truncate, merge or append)", s)
	}
}
