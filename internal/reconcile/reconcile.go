// Package reconcile computes the change plan between what a pack wants on
// disk and what an instance currently has. It is pure: callers supply the
// on-disk listing and execute the resulting plan themselves.
package reconcile

import (
	"path"
	"slices"
	"strings"
)

type Action int

const (
	Download Action = iota
	Remove
	Preserve
	Unchanged
)

// Change is one planned step. Paths are instance-relative with forward
// slashes, matching pack index paths.
type Change struct {
	Path   string
	Action Action
}

// Target names one entry the instance should end up with.
type Target struct {
	Path string
}

// Options configures a plan computation.
type Options struct {
	// PreservePatterns shield on-disk files from removal and overwrite.
	// Matched case-insensitively against the base filename.
	PreservePatterns []string
	// ExemptDir is an instance-relative directory whose contents never
	// appear in the plan at all, on either side.
	ExemptDir string
	// Overwrite plans a download even when the target path already
	// exists. Override trees are applied this way.
	Overwrite bool
	// KeepStale leaves on-disk files that no target claims alone instead
	// of removing them. Override trees are additive, so they set this.
	KeepStale bool
}

// Compute builds the plan. Every non-exempt path from either input appears
// in exactly one action, except untargeted on-disk files under KeepStale,
// which are deliberately left unreported. Output is sorted by path within
// each pass, disk-side entries first.
func Compute(onDisk []string, targets []Target, opts Options) []Change {
	preserve := lowerAll(opts.PreservePatterns)

	targetSet := make(map[string]bool, len(targets))
	for _, t := range targets {
		if !exempt(t.Path, opts.ExemptDir) {
			targetSet[t.Path] = true
		}
	}

	diskSet := make(map[string]bool, len(onDisk))
	for _, p := range onDisk {
		if !exempt(p, opts.ExemptDir) {
			diskSet[p] = true
		}
	}

	var changes []Change

	diskPaths := make([]string, 0, len(diskSet))
	for p := range diskSet {
		diskPaths = append(diskPaths, p)
	}
	slices.Sort(diskPaths)

	for _, p := range diskPaths {
		switch {
		case matchAny(p, preserve):
			changes = append(changes, Change{Path: p, Action: Preserve})
		case !targetSet[p] && !opts.KeepStale:
			changes = append(changes, Change{Path: p, Action: Remove})
		}
	}

	targetPaths := make([]string, 0, len(targetSet))
	for p := range targetSet {
		targetPaths = append(targetPaths, p)
	}
	slices.Sort(targetPaths)

	for _, p := range targetPaths {
		if diskSet[p] {
			if matchAny(p, preserve) {
				// Already reported as Preserve; the on-disk copy wins.
				continue
			}
			if !opts.Overwrite {
				changes = append(changes, Change{Path: p, Action: Unchanged})
				continue
			}
		}
		changes = append(changes, Change{Path: p, Action: Download})
	}

	return changes
}

// Summary returns counts by action.
func Summary(changes []Change) (download, remove, preserve, unchanged int) {
	for _, c := range changes {
		switch c.Action {
		case Download:
			download++
		case Remove:
			remove++
		case Preserve:
			preserve++
		case Unchanged:
			unchanged++
		}
	}
	return
}

// Matches reports whether the path's base filename matches any of the
// patterns, using the same case-insensitive substring rule the planner
// applies to preserve patterns.
func Matches(p string, patterns []string) bool {
	return matchAny(p, lowerAll(patterns))
}

// Paths returns the paths planned with the given action, in plan order.
func Paths(changes []Change, action Action) []string {
	var out []string
	for _, c := range changes {
		if c.Action == action {
			out = append(out, c.Path)
		}
	}
	return out
}

func exempt(p, dir string) bool {
	if dir == "" {
		return false
	}
	return p == dir || strings.HasPrefix(p, dir+"/")
}

func matchAny(p string, patterns []string) bool {
	name := strings.ToLower(path.Base(p))
	for _, pat := range patterns {
		if pat != "" && strings.Contains(name, pat) {
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
