package installer

import (
	"context"
	"time"

	"github.com/Turbootzz/mrpack-installer/internal/classify"
	"github.com/Turbootzz/mrpack-installer/internal/config"
	"github.com/Turbootzz/mrpack-installer/internal/logging"
	"github.com/Turbootzz/mrpack-installer/internal/modrinth"
	"github.com/Turbootzz/mrpack-installer/internal/reconcile"
)

// Check reports the installed version against the newest matching catalog
// version, plus the work an update would do. It never changes the instance.
func Check(ctx context.Context, cfg *config.Config, opts Options) error {
	client := modrinth.NewClient(opts.APIBaseURL)

	st, err := loadAndLogState(cfg.InstanceDir)
	if err != nil {
		return err
	}

	res, err := resolveAndLogVersion(ctx, client, cfg, st)
	if err != nil {
		return err
	}

	logging.Infof("Modpack:    %s", cfg.ModpackID)
	if st != nil {
		installed := st.VersionNumber
		if installed == "" {
			installed = st.VersionID
		}
		logging.Infof("Installed:  %s", installed)
	} else {
		logging.Info("Installed:  (not installed)")
	}
	logging.Infof("Latest:     %s", res.version.VersionNumber)
	logging.Infof("Published:  %s", res.version.DatePublished.Format(time.RFC3339))

	if res.decision == upToDate {
		logging.Info("Already up to date.")
		return nil
	}

	archive, err := fetchAndOpenPack(ctx, client, res.version)
	if err != nil {
		return err
	}
	overrides, err := archive.Overrides()
	if err != nil {
		return err
	}

	result := &Result{}
	cls := classify.New(cfg.ClientOnlyMods, cfg.AllowedMods)
	mods := selectModEntries(cls, archive.Index.Files, result)
	included := selectOverrides(cls, overrides, result)

	onDisk, err := listInstalledMods(cfg, st == nil)
	if err != nil {
		return err
	}

	changes := planMods(onDisk, mods.targets, cfg)
	ovChanges, _ := planOverrides(included, cfg)

	download, remove, preserve, unchanged := reconcile.Summary(changes)
	ovDownload, _, _, _ := reconcile.Summary(ovChanges)

	logging.Info("Changes available:")
	logging.Infof("  %d to download, %d to remove, %d preserved, %d unchanged", download, remove, preserve, unchanged)
	logging.Infof("  %d override files to apply", ovDownload)
	if result.ExcludedClient > 0 {
		logging.Infof("  %d client-only entries excluded", result.ExcludedClient)
	}

	return nil
}
