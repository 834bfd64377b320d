package tenant

import "strings"

// Slugify derives the canonical tenant identifier from a display name:
// lowercase, every character outside [a-z0-9_] replaced with '_', leading and
// trailing separators stripped. Deriving twice yields the same string.
func Slugify(name string) string {
	return normalize(name, '_', isSchemaChar)
}

func normalize(name string, sep byte, keep func(byte) bool) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	out := make([]byte, 0, len(lowered))
	for i := 0; i < len(lowered); i++ {
		c := lowered[i]
		if keep(c) {
			out = append(out, c)
		} else {
			out = append(out, sep)
		}
	}
	return strings.Trim(string(out), string(sep))
}

func isSchemaChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_'
}

// BuildSchemaName returns the canonical PostgreSQL schema name for a tenant slug.
// The fixed prefix keeps tenant schemas visually separated from shared ones.
func BuildSchemaName(slug string) string {
	return "tenant_" + slug
}

// BuildSubdomain joins the canonical tenant slug with the platform domain
// suffix, e.g. ("best_homes", "brickline.app") -> "best_homes.brickline.app".
func BuildSubdomain(slug, platformSuffix string) string {
	return slug + "." + strings.TrimPrefix(platformSuffix, ".")
}
