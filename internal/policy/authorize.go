package policy

import "strings"

// Permission nodes checked by the peek service.
const (
	NodeUse    = "peek.use"
	NodeExempt = "peek.exempt"
)

type Decision struct {
	Allowed bool
	Matched string
}

// Decide evaluates node against a granted permission list. Entries are
// exact nodes ("peek.use"), prefix wildcards ("peek.*") or "*". An entry
// prefixed with "-" revokes and always wins over grants.
func Decide(granted []string, node string) Decision {
	node = strings.ToLower(strings.TrimSpace(node))
	if node == "" {
		return Decision{}
	}

	var grant string
	for _, raw := range granted {
		entry := strings.ToLower(strings.TrimSpace(raw))
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, "-") {
			if matches(entry[1:], node) {
				return Decision{Allowed: false, Matched: entry}
			}
			continue
		}
		if grant == "" && matches(entry, node) {
			grant = entry
		}
	}
	if grant == "" {
		return Decision{}
	}
	return Decision{Allowed: true, Matched: grant}
}

func Allows(granted []string, node string) bool {
	return Decide(granted, node).Allowed
}

func matches(entry, node string) bool {
	switch {
	case entry == "*":
		return true
	case entry == node:
		return true
	case strings.HasSuffix(entry, ".*"):
		prefix := strings.TrimSuffix(entry, "*")
		return strings.HasPrefix(node, prefix)
	default:
		return false
	}
}
