package category

import "strings"

// Category is the kind of work an allocation represents.
type Category string

const (
	Project     Category = "Project"
	Support     Category = "Support"
	Maintenance Category = "Maintenance"
)

// All lists the known categories in display order.
var All = []Category{Project, Support, Maintenance}

// Parse resolves a category name case-insensitively. Unknown names are returned
// as-is with ok=false so callers can still carry them through flat estimation.
func Parse(value string) (Category, bool) {
	trimmed := strings.TrimSpace(value)
	for _, c := range All {
		if strings.EqualFold(trimmed, string(c)) {
			return c, true
		}
	}
	return Category(trimmed), false
}

// Known reports whether c is one of the defined categories.
func (c Category) Known() bool {
	for _, known := range All {
		if c == known {
			return true
		}
	}
	return false
}

// UsesComplexity reports whether effort for c scales with complexity and tier.
// Only project work does; support and maintenance are flat lookups.
func (c Category) UsesComplexity() bool {
	return c == Project
}

func (c Category) String() string {
	return string(c)
}
