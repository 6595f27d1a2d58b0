// Package capability decides which registry tools each agent type may request.
package capability

import (
	"strings"

	"github.com/chebacca/agentcore/internal/tools"
)

// RiskLevel describes how much damage an agent's tools can do.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Profile binds an agent ID to the predicate selecting its tools.
type Profile struct {
	ID    string
	Risk  RiskLevel
	Match func(tools.Tool) bool
}

var (
	readVerbs  = []string{"query", "search", "get", "list", "fetch", "retrieve"}
	writeVerbs = []string{"create", "update", "delete", "assign", "add", "remove", "send", "schedule", "set", "cancel"}
)

// Filter returns the names of the catalog tools p allows, in catalog order.
func Filter(p Profile, catalog []tools.Tool) []string {
	names := make([]string, 0, len(catalog))
	for _, t := range catalog {
		if p.Match == nil || p.Match(t) {
			names = append(names, t.Name)
		}
	}
	return names
}

// Tagged matches tools by capability label. A tool with no labels is
// classified by its name instead: it matches when the lowercased name
// contains any of verbs.
func Tagged(c tools.Capability, verbs ...string) func(tools.Tool) bool {
	return func(t tools.Tool) bool {
		if len(t.Capabilities) > 0 {
			return t.HasCapability(c)
		}
		return NameContains(t.Name, verbs...)
	}
}

// NameContains reports whether name contains any of the substrings, ignoring case.
func NameContains(name string, subs ...string) bool {
	lower := strings.ToLower(name)
	for _, s := range subs {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// QueryProfile is the read-only profile: tools tagged read, or untagged
// tools whose names look like lookups.
func QueryProfile() Profile {
	return Profile{ID: "query", Risk: RiskLow, Match: Tagged(tools.CapabilityRead, readVerbs...)}
}

// ActionProfile allows mutating tools plus everything the query profile allows.
func ActionProfile() Profile {
	read := Tagged(tools.CapabilityRead, readVerbs...)
	write := Tagged(tools.CapabilityWrite, writeVerbs...)
	return Profile{
		ID:    "action",
		Risk:  RiskHigh,
		Match: func(t tools.Tool) bool { return write(t) || read(t) },
	}
}

// GeneralProfile is read-only like QueryProfile. Mutations only reach a
// caller as planned actions.
func GeneralProfile() Profile {
	return Profile{ID: "general", Risk: RiskLow, Match: Tagged(tools.CapabilityRead, readVerbs...)}
}
