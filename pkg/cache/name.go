package cache

import (
	"fmt"
	"strconv"
	"strings"
)

// Purpose is the category of resources a generation serves.
type Purpose string

const (
	// PurposeStaticAssets holds the install manifest, assets and page shells.
	PurposeStaticAssets Purpose = "static-assets"

	// PurposeAPIData holds degraded-mode copies of data service responses.
	PurposeAPIData Purpose = "api-data"
)

// Purposes lists every purpose a deploy owns a generation for.
func Purposes() []Purpose {
	return []Purpose{PurposeStaticAssets, PurposeAPIData}
}

// GenerationName returns the store name for a purpose at a deploy version.
// Format: {purpose}-v{N}
func GenerationName(purpose Purpose, version int) string {
	return fmt.Sprintf("%s-v%d", purpose, version)
}

// ParseGenerationName splits a generation name into purpose and version.
func ParseGenerationName(name string) (Purpose, int, bool) {
	idx := strings.LastIndex(name, "-v")
	if idx <= 0 {
		return "", 0, false
	}

	version, err := strconv.Atoi(name[idx+2:])
	if err != nil || version < 0 {
		return "", 0, false
	}

	purpose := Purpose(name[:idx])
	switch purpose {
	case PurposeStaticAssets, PurposeAPIData:
		return purpose, version, true
	default:
		return "", 0, false
	}
}

// LatestVersion returns the highest version among names for the given purpose.
// The boolean is false when no generation of that purpose exists.
func LatestVersion(names []string, purpose Purpose) (int, bool) {
	latest, found := 0, false
	for _, name := range names {
		p, v, ok := ParseGenerationName(name)
		if !ok || p != purpose {
			continue
		}
		if !found || v > latest {
			latest, found = v, true
		}
	}
	return latest, found
}

// purposeOf returns the purpose label used in metrics for a generation name.
func purposeOf(name string) string {
	if p, _, ok := ParseGenerationName(name); ok {
		return string(p)
	}
	return "unknown"
}
