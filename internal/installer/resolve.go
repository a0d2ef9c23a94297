package installer

import (
	"context"
	"fmt"
	"strings"

	"github.com/Turbootzz/mrpack-installer/internal/config"
	"github.com/Turbootzz/mrpack-installer/internal/modrinth"
	"github.com/Turbootzz/mrpack-installer/internal/state"
)

// decision relates the resolved catalog version to the installed state.
type decision int

const (
	notInstalled decision = iota
	upToDate
	updateAvailable
)

func (d decision) String() string {
	switch d {
	case notInstalled:
		return "not-installed"
	case upToDate:
		return "up-to-date"
	default:
		return "update-available"
	}
}

// resolution is the selected version plus what to do about it.
type resolution struct {
	version  modrinth.Version
	decision decision
}

// resolveVersion picks the newest catalog version satisfying the config's
// channel and pin constraints. The catalog lists versions newest first and
// version numbers carry no comparable ordering, so "newest" is list order.
func resolveVersion(ctx context.Context, client *modrinth.Client, cfg *config.Config, st *state.State) (*resolution, error) {
	versions, err := client.ProjectVersions(ctx, cfg.ModpackID)
	if err != nil {
		return nil, err
	}

	selected, ok := selectVersion(versions, cfg.Channel, cfg.Version)
	if !ok {
		return nil, fmt.Errorf("%w: project %s, channel %q, version %q",
			ErrNoMatchingVersion, cfg.ModpackID, cfg.Channel, cfg.Version)
	}

	res := &resolution{version: selected}
	switch {
	case st == nil:
		res.decision = notInstalled
	case st.VersionID == selected.ID:
		res.decision = upToDate
	default:
		res.decision = updateAvailable
	}
	return res, nil
}

// selectVersion returns the first version matching the constraints. An
// empty channel accepts every release type; a pin matches either the
// version number or the version id.
func selectVersion(versions []modrinth.Version, channel, pin string) (modrinth.Version, bool) {
	for _, v := range versions {
		if channel != "" && !strings.EqualFold(v.VersionType, channel) {
			continue
		}
		if pin != "" && v.VersionNumber != pin && v.ID != pin {
			continue
		}
		return v, true
	}
	return modrinth.Version{}, false
}
