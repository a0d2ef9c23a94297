package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Turbootzz/mrpack-installer/internal/classify"
	"github.com/Turbootzz/mrpack-installer/internal/config"
	"github.com/Turbootzz/mrpack-installer/internal/fetch"
	"github.com/Turbootzz/mrpack-installer/internal/logging"
	"github.com/Turbootzz/mrpack-installer/internal/modrinth"
	"github.com/Turbootzz/mrpack-installer/internal/mrpack"
	"github.com/Turbootzz/mrpack-installer/internal/permissions"
	"github.com/Turbootzz/mrpack-installer/internal/reconcile"
	"github.com/Turbootzz/mrpack-installer/internal/state"
)

func normalizeRunOptions(cfg *config.Config, opts Options) Options {
	if opts.Concurrency < 1 {
		opts.Concurrency = cfg.ConcurrencyLimit
	}
	return opts
}

func logRunStart(cfg *config.Config, opts Options) {
	logging.Debugf(
		"Verbose: run start modpack=%s instance=%q channel=%q pin=%q dry-run=%t force=%t concurrency=%d",
		cfg.ModpackID,
		cfg.InstanceDir,
		cfg.Channel,
		cfg.Version,
		opts.DryRun,
		opts.Force,
		opts.Concurrency,
	)
}

// loadAndLogState reads the install record. A missing record is a fresh
// install and comes back as nil.
func loadAndLogState(instanceDir string) (*state.State, error) {
	st, err := state.Load(instanceDir)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			logging.Debugf("Verbose: no install state instance=%q", instanceDir)
			return nil, nil
		}
		return nil, err
	}
	logging.Debugf(
		"Verbose: loaded state version-id=%s version=%s installed-at=%s",
		st.VersionID,
		st.VersionNumber,
		st.InstalledAt.Format(time.RFC3339),
	)
	return st, nil
}

func resolveAndLogVersion(ctx context.Context, client *modrinth.Client, cfg *config.Config, st *state.State) (*resolution, error) {
	logging.Info("Resolving modpack version...")
	res, err := resolveVersion(ctx, client, cfg, st)
	if err != nil {
		return nil, err
	}
	logging.Debugf(
		"Verbose: resolved version id=%s number=%s type=%s published=%s decision=%s",
		res.version.ID,
		res.version.VersionNumber,
		res.version.VersionType,
		res.version.DatePublished.Format(time.RFC3339),
		res.decision,
	)
	return res, nil
}

// fetchAndOpenPack downloads the resolved version's pack archive and parses
// it. Both steps run before the instance is touched, so a corrupt pack
// aborts with everything still intact.
func fetchAndOpenPack(ctx context.Context, client *modrinth.Client, v modrinth.Version) (*mrpack.Archive, error) {
	file, ok := modrinth.PackFile(v)
	if !ok {
		return nil, fmt.Errorf("version %s has no pack file", v.VersionNumber)
	}

	logging.Infof("Downloading %s...", file.Filename)
	data, err := client.DownloadPack(ctx, file)
	if err != nil {
		return nil, err
	}
	logging.Debugf("Verbose: pack downloaded file=%s bytes=%d", file.Filename, len(data))

	archive, err := mrpack.Open(data)
	if err != nil {
		return nil, err
	}
	logging.Debugf(
		"Verbose: pack opened name=%q version-id=%s entries=%d",
		archive.Index.Name,
		archive.Index.VersionID,
		len(archive.Index.Files),
	)
	return archive, nil
}

// modSet pairs the classified install targets with their index entries, so
// planned downloads can be turned back into sourced jobs.
type modSet struct {
	targets []reconcile.Target
	files   map[string]mrpack.File
}

// selectModEntries classifies the index. Entries outside the mod directory
// are skipped: the pack may ship configs or scripts there, but only the mod
// directory is managed.
func selectModEntries(cls *classify.Classifier, files []mrpack.File, result *Result) modSet {
	set := modSet{files: make(map[string]mrpack.File, len(files))}
	for _, f := range files {
		if !strings.HasPrefix(f.Path, config.ModsDir+"/") {
			result.SkippedNonMod++
			logging.Debugf("Verbose: skipping non-mod entry path=%s", f.Path)
			continue
		}
		d := cls.Decide(f.Path, f.Env)
		if !d.Include {
			result.ExcludedClient++
			logging.Debugf("Verbose: excluding entry path=%s reason=%s", f.Path, d.Reason)
			continue
		}
		set.targets = append(set.targets, reconcile.Target{Path: f.Path})
		set.files[f.Path] = f
	}
	return set
}

// selectOverrides classifies the archive's override files. Overrides carry
// no environment declaration, so only the filename rules apply.
func selectOverrides(cls *classify.Classifier, overrides []mrpack.Override, result *Result) []mrpack.Override {
	included := make([]mrpack.Override, 0, len(overrides))
	for _, ov := range overrides {
		d := cls.Decide(ov.Path, nil)
		if !d.Include {
			result.ExcludedClient++
			logging.Debugf("Verbose: excluding override path=%s reason=%s", ov.Path, d.Reason)
			continue
		}
		included = append(included, ov)
	}
	return included
}

// listInstalledMods returns the top-level jar files of the mod directory as
// instance-relative paths. On a fresh install only preserved files make the
// list: whatever else already sits there was never managed by us, and
// leaving it out keeps it off the removal plan.
func listInstalledMods(cfg *config.Config, fresh bool) ([]string, error) {
	entries, err := os.ReadDir(cfg.ModsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning mods directory: %w", err)
	}

	var listing []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".jar") {
			continue
		}
		rel := path.Join(config.ModsDir, e.Name())
		if fresh && !reconcile.Matches(rel, cfg.PreservedMods) {
			continue
		}
		listing = append(listing, rel)
	}
	logging.Debugf("Verbose: scanned mods directory files=%d fresh=%t", len(listing), fresh)
	return listing, nil
}

func exemptPath() string {
	return path.Join(config.ModsDir, config.ExemptDir)
}

func planMods(onDisk []string, targets []reconcile.Target, cfg *config.Config) []reconcile.Change {
	return reconcile.Compute(onDisk, targets, reconcile.Options{
		PreservePatterns: cfg.PreservedMods,
		ExemptDir:        exemptPath(),
	})
}

// planOverrides plans the override placement. Overrides are additive and
// always rewritten, so the plan runs in overwrite mode with stale removal
// off; the on-disk side is just the override targets that already exist.
func planOverrides(included []mrpack.Override, cfg *config.Config) ([]reconcile.Change, map[string]mrpack.Override) {
	byPath := make(map[string]mrpack.Override, len(included))
	targets := make([]reconcile.Target, 0, len(included))
	var onDisk []string

	for _, ov := range included {
		byPath[ov.Path] = ov
		targets = append(targets, reconcile.Target{Path: ov.Path})
		if _, err := os.Stat(filepath.Join(cfg.InstanceDir, filepath.FromSlash(ov.Path))); err == nil {
			onDisk = append(onDisk, ov.Path)
		}
	}

	changes := reconcile.Compute(onDisk, targets, reconcile.Options{
		PreservePatterns: cfg.PreservedMods,
		ExemptDir:        exemptPath(),
		Overwrite:        true,
		KeepStale:        true,
	})
	return changes, byPath
}

func ensureModsDir(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.ModsPath(), 0o755); err != nil {
		return fmt.Errorf("creating mods directory: %w", err)
	}
	return nil
}

// removeStaleMods deletes jars the plan marked for removal. Removal runs
// before any download so a failed run never holds both the old and new
// file set.
func removeStaleMods(changes []reconcile.Change, instanceDir string, result *Result) error {
	for _, p := range reconcile.Paths(changes, reconcile.Remove) {
		full := filepath.Join(instanceDir, filepath.FromSlash(p))
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
		logging.Infof("  - Removed %s", p)
		result.Removed++
	}
	return nil
}

func modJobs(set modSet, changes []reconcile.Change) []fetch.Job {
	var jobs []fetch.Job
	for _, p := range reconcile.Paths(changes, reconcile.Download) {
		f := set.files[p]
		jobs = append(jobs, fetch.Job{
			Path:   f.Path,
			URLs:   f.Downloads,
			Hashes: f.Hashes,
			Size:   f.FileSize,
		})
	}
	return jobs
}

func overrideJobs(changes []reconcile.Change, byPath map[string]mrpack.Override) []fetch.Job {
	var jobs []fetch.Job
	for _, p := range reconcile.Paths(changes, reconcile.Download) {
		jobs = append(jobs, fetch.Job{Path: p, Open: byPath[p].Open})
	}
	return jobs
}

// runFetch places the jobs and folds failures into the result. It returns
// the number of successful placements; failures never abort the pool.
func runFetch(ctx context.Context, jobs []fetch.Job, cfg *config.Config, opts Options, result *Result) int {
	results := fetch.Run(ctx, jobs, cfg.InstanceDir, fetch.Options{
		Concurrency: opts.Concurrency,
		UserAgent:   modrinth.UserAgent,
		OnProgress:  opts.OnProgress,
	})

	placed := 0
	for _, r := range results {
		if r.Err != nil {
			result.Failed = append(result.Failed, FailedFile{
				Path:   r.Job.Path,
				Source: r.Source,
				Reason: r.Err.Error(),
			})
			continue
		}
		placed++
	}
	return placed
}

func persistState(v modrinth.Version, instanceDir string) error {
	st := &state.State{
		VersionID:     v.ID,
		VersionNumber: v.VersionNumber,
		InstalledAt:   time.Now().UTC(),
	}
	if err := st.Save(instanceDir); err != nil {
		return fmt.Errorf("saving install state: %w", err)
	}
	logging.Debugf("Verbose: saved state version-id=%s version=%s", v.ID, v.VersionNumber)
	return nil
}

// applyPermissions fixes ownership when the config asks for it. Failures
// are logged and swallowed: the files are already installed correctly and
// the operator can chown by hand.
func applyPermissions(cfg *config.Config) {
	if cfg.Permissions == nil {
		return
	}
	logging.Debugf("Verbose: fixing ownership user=%s group=%s", cfg.Permissions.User, cfg.Permissions.Group)
	if err := permissions.Apply(cfg.InstanceDir, cfg.Permissions.User, cfg.Permissions.Group); err != nil {
		logging.Warnf("Could not fix file ownership: %v", err)
	}
}
