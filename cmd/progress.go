package cmd

import (
	"os"
	"sync"

	"github.com/Turbootzz/mrpack-installer/internal/fetch"
	"github.com/schollz/progressbar/v3"
)

// downloadBar renders fetch progress on stderr. A run downloads in phases
// (mods, then overrides) and each phase reports its own totals, so the bar
// restarts whenever the total changes.
type downloadBar struct {
	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	total    int64
	finished bool
}

// update is called from the fetch workers, possibly concurrently.
func (d *downloadBar) update(p fetch.Progress) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p.Total <= 0 {
		return
	}
	if d.bar == nil || d.finished || p.Total != d.total {
		d.bar = progressbar.NewOptions64(p.Total,
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		d.total = p.Total
		d.finished = false
	}

	_ = d.bar.Set64(p.Completed)
	if p.Completed >= p.Total {
		_ = d.bar.Finish()
		d.finished = true
	}
}

// finish clears a bar left mid-phase, for example after a cancelled run.
func (d *downloadBar) finish() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bar != nil && !d.finished {
		_ = d.bar.Finish()
		d.finished = true
	}
}
