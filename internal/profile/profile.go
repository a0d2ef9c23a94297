// Package profile stores named bundles of CLI options, so operators
// running several instances can switch between them with one flag.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

// Profile holds saveable CLI options. All fields are pointers so an unset
// option stays distinguishable from a zero value.
type Profile struct {
	ConfigPath  *string `toml:"config,omitempty"`
	Concurrency *int    `toml:"concurrency,omitempty"`
	Verbose     *bool   `toml:"verbose,omitempty"`
	LogFile     *string `toml:"log-file,omitempty"`
}

type profilesFile struct {
	Profiles map[string]Profile `toml:"profiles"`
}

// Path returns the location of the profiles file.
func Path() string {
	return filepath.Join(xdg.ConfigHome, "mrpack-installer", "profiles.toml")
}

// Load reads one named profile.
func Load(name string) (*Profile, error) {
	pf, err := readAll()
	if err != nil {
		return nil, err
	}
	p, ok := pf.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	return &p, nil
}

// Save writes or replaces a named profile, creating the profiles file on
// first use.
func Save(name string, p *Profile) error {
	pf, err := readAll()
	if err != nil {
		return err
	}
	pf.Profiles[name] = *p
	return writeAll(pf)
}

// List returns the names of all saved profiles, sorted.
func List() ([]string, error) {
	pf, err := readAll()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(pf.Profiles))
	for name := range pf.Profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Delete removes a named profile.
func Delete(name string) error {
	pf, err := readAll()
	if err != nil {
		return err
	}
	if _, ok := pf.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	delete(pf.Profiles, name)
	return writeAll(pf)
}

func readAll() (profilesFile, error) {
	var pf profilesFile
	if _, err := toml.DecodeFile(Path(), &pf); err != nil {
		if os.IsNotExist(err) {
			return profilesFile{Profiles: map[string]Profile{}}, nil
		}
		return pf, fmt.Errorf("reading profiles: %w", err)
	}
	if pf.Profiles == nil {
		pf.Profiles = map[string]Profile{}
	}
	return pf, nil
}

func writeAll(pf profilesFile) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating profiles directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating profiles file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(pf); err != nil {
		return fmt.Errorf("encoding profiles: %w", err)
	}
	return nil
}
