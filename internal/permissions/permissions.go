// Package permissions applies file ownership after installs, so files
// written by a root-run updater end up owned by the account the server
// actually runs as.
package permissions

import (
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
)

// Apply chowns every entry under root to userName and group. An empty
// userName disables the step entirely; an empty group falls back to the
// user's primary group. On platforms without Unix ownership this is a
// no-op.
func Apply(root, userName, group string) error {
	if userName == "" {
		return nil
	}
	if runtime.GOOS == "windows" {
		return nil
	}

	uid, gid, err := lookup(userName, group)
	if err != nil {
		return err
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := os.Chown(path, uid, gid); err != nil {
			return fmt.Errorf("chown %s: %w", path, err)
		}
		return nil
	})
}

func lookup(userName, group string) (uid, gid int, err error) {
	u, err := user.Lookup(userName)
	if err != nil {
		return 0, 0, fmt.Errorf("looking up user %s: %w", userName, err)
	}
	uid, err = strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing uid %q: %w", u.Uid, err)
	}

	gidStr := u.Gid
	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			return 0, 0, fmt.Errorf("looking up group %s: %w", group, err)
		}
		gidStr = g.Gid
	}
	gid, err = strconv.Atoi(gidStr)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing gid %q: %w", gidStr, err)
	}

	return uid, gid, nil
}
