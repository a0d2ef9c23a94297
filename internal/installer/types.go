package installer

import (
	"errors"

	"github.com/Turbootzz/mrpack-installer/internal/fetch"
)

// ErrNoMatchingVersion reports that the catalog has no version satisfying
// the configured channel and pin. Nothing on disk has been touched.
var ErrNoMatchingVersion = errors.New("no modpack version matches the configured constraints")

// ErrPartialFailure reports a run where some files could not be placed.
// Successfully placed files stay, the install state is withheld, and a
// rerun retries the failed entries.
var ErrPartialFailure = errors.New("some files failed to install")

// Options control a single Run or Check invocation.
type Options struct {
	Force       bool
	DryRun      bool
	Concurrency int
	// APIBaseURL overrides the catalog endpoint. Empty selects production.
	APIBaseURL string
	// OnProgress, when set, receives pool progress during each download
	// phase.
	OnProgress func(fetch.Progress)
}

// FailedFile is one entry that could not be placed, with the last source
// tried and the failure reason.
type FailedFile struct {
	Path   string
	Source string
	Reason string
}

// Result summarizes a run. In dry-run mode Downloaded, Removed and
// OverridesApplied hold the planned counts instead of executed ones.
type Result struct {
	OldVersion string
	NewVersion string
	VersionID  string

	Downloaded       int
	Removed          int
	Preserved        int
	Unchanged        int
	ExcludedClient   int
	SkippedNonMod    int
	OverridesApplied int

	Failed []FailedFile
}
