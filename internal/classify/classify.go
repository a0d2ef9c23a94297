// Package classify decides which pack entries belong on a server. The
// decision looks only at an entry's declared environment support and its
// filename, so it can run identically over manifest entries and override
// files.
package classify

import (
	"path"
	"strings"

	"github.com/Turbootzz/mrpack-installer/internal/mrpack"
)

// Reason explains why an entry was included or excluded.
type Reason string

const (
	// ReasonServerUnsupported marks entries whose manifest declares the
	// server side unsupported. Nothing overrides this.
	ReasonServerUnsupported Reason = "declared-unsupported"
	// ReasonAllowlisted marks entries kept because an allowed_mods pattern
	// matched, overriding any client_only_mods match.
	ReasonAllowlisted Reason = "allowlist-override"
	// ReasonClientOnly marks entries dropped by a client_only_mods pattern.
	ReasonClientOnly Reason = "blacklist-match"
	// ReasonDefault marks entries kept because no rule matched.
	ReasonDefault Reason = "default-include"
)

// Decision is the outcome for a single entry.
type Decision struct {
	Path    string
	Include bool
	Reason  Reason
}

// Classifier holds the operator's pattern lists. Patterns match
// case-insensitively as substrings of the base filename.
type Classifier struct {
	clientOnly []string
	allowed    []string
}

// New builds a Classifier from the configured pattern lists.
func New(clientOnly, allowed []string) *Classifier {
	return &Classifier{
		clientOnly: lowerAll(clientOnly),
		allowed:    lowerAll(allowed),
	}
}

// Decide classifies one entry. Rules apply in order, first match wins:
// declared server-unsupported, allowlist, blacklist, default include.
// A nil env means the pack predates side declarations and is treated as
// server-supported.
func (c *Classifier) Decide(entryPath string, env *mrpack.Env) Decision {
	if env != nil && strings.EqualFold(env.Server, mrpack.EnvUnsupported) {
		return Decision{Path: entryPath, Include: false, Reason: ReasonServerUnsupported}
	}

	name := strings.ToLower(path.Base(entryPath))
	if matchAny(name, c.allowed) {
		return Decision{Path: entryPath, Include: true, Reason: ReasonAllowlisted}
	}
	if matchAny(name, c.clientOnly) {
		return Decision{Path: entryPath, Include: false, Reason: ReasonClientOnly}
	}

	return Decision{Path: entryPath, Include: true, Reason: ReasonDefault}
}

func matchAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(name, p) {
			return true
		}
	}
	return false
}

func lowerAll(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, strings.ToLower(strings.TrimSpace(p)))
	}
	return out
}
