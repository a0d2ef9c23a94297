// Package installer drives the install and update pipeline: resolve a
// catalog version, fetch and classify the pack, reconcile it against the
// instance, place files, then record the installed version.
package installer

import (
	"context"
	"fmt"

	"github.com/Turbootzz/mrpack-installer/internal/classify"
	"github.com/Turbootzz/mrpack-installer/internal/config"
	"github.com/Turbootzz/mrpack-installer/internal/logging"
	"github.com/Turbootzz/mrpack-installer/internal/modrinth"
	"github.com/Turbootzz/mrpack-installer/internal/reconcile"
)

// Run performs the full install or update flow for one instance.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	opts = normalizeRunOptions(cfg, opts)
	logRunStart(cfg, opts)

	client := modrinth.NewClient(opts.APIBaseURL)

	st, err := loadAndLogState(cfg.InstanceDir)
	if err != nil {
		return nil, err
	}

	res, err := resolveAndLogVersion(ctx, client, cfg, st)
	if err != nil {
		return nil, err
	}

	result := &Result{
		NewVersion: res.version.VersionNumber,
		VersionID:  res.version.ID,
	}
	if st != nil {
		result.OldVersion = st.VersionNumber
		if result.OldVersion == "" {
			result.OldVersion = st.VersionID
		}
	}

	if res.decision == upToDate && !opts.Force {
		logging.Info("Already up to date.")
		return result, nil
	}

	archive, err := fetchAndOpenPack(ctx, client, res.version)
	if err != nil {
		return nil, err
	}

	// Walking the override listing validates every archived path, so a
	// pack that would escape the instance directory fails here, before
	// anything is removed or written.
	overrides, err := archive.Overrides()
	if err != nil {
		return nil, err
	}

	cls := classify.New(cfg.ClientOnlyMods, cfg.AllowedMods)
	mods := selectModEntries(cls, archive.Index.Files, result)
	included := selectOverrides(cls, overrides, result)

	onDisk, err := listInstalledMods(cfg, st == nil)
	if err != nil {
		return nil, err
	}

	changes := planMods(onDisk, mods.targets, cfg)
	ovChanges, ovByPath := planOverrides(included, cfg)

	download, remove, preserve, unchanged := reconcile.Summary(changes)
	ovDownload, _, ovPreserve, _ := reconcile.Summary(ovChanges)
	logging.Debugf(
		"Verbose: plan download=%d remove=%d preserve=%d unchanged=%d overrides=%d",
		download, remove, preserve, unchanged, ovDownload,
	)
	result.Preserved = preserve + ovPreserve
	result.Unchanged = unchanged

	if opts.DryRun {
		printDryRun(changes, ovDownload)
		result.Downloaded = download
		result.Removed = remove
		result.OverridesApplied = ovDownload
		return result, nil
	}

	if err := ensureModsDir(cfg); err != nil {
		return nil, err
	}
	if err := removeStaleMods(changes, cfg.InstanceDir, result); err != nil {
		return nil, err
	}

	jobs := modJobs(mods, changes)
	if len(jobs) > 0 {
		for _, job := range jobs {
			logging.Infof("  + Adding %s", job.Path)
		}
		logging.Infof("Downloading %d mods...", len(jobs))
		result.Downloaded = runFetch(ctx, jobs, cfg, opts, result)
	}

	ovJobs := overrideJobs(ovChanges, ovByPath)
	if len(ovJobs) > 0 {
		logging.Infof("Applying %d override files...", len(ovJobs))
		result.OverridesApplied = runFetch(ctx, ovJobs, cfg, opts, result)
	}

	if len(result.Failed) > 0 {
		for _, f := range result.Failed {
			logging.Errorf("  ! %s (%s): %s", f.Path, f.Source, f.Reason)
		}
		return result, fmt.Errorf("%w: %d of %d files", ErrPartialFailure, len(result.Failed), len(jobs)+len(ovJobs))
	}

	if err := persistState(res.version, cfg.InstanceDir); err != nil {
		return nil, err
	}

	applyPermissions(cfg)

	return result, nil
}

func printDryRun(changes []reconcile.Change, overrideCount int) {
	download, remove, preserve, unchanged := reconcile.Summary(changes)
	logging.Info("Dry run - no changes made:")
	logging.Infof("  %d to download, %d to remove, %d preserved, %d unchanged", download, remove, preserve, unchanged)

	for _, c := range changes {
		switch c.Action {
		case reconcile.Download:
			logging.Infof("  + %s", c.Path)
		case reconcile.Remove:
			logging.Infof("  - %s", c.Path)
		case reconcile.Preserve:
			logging.Infof("  = %s (preserved)", c.Path)
		}
	}
	if overrideCount > 0 {
		logging.Infof("  %d override files would be applied", overrideCount)
	}
}
