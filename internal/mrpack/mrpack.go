// Package mrpack reads Modrinth modpack archives: a zip holding the
// modrinth.index.json manifest plus optional override trees that are
// applied onto the instance directory.
package mrpack

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
)

const indexName = "modrinth.index.json"

// Override trees inside the archive. A server install applies overrides/
// first, then server-overrides/ on top of it; client-overrides/ is ignored.
const (
	overridesDir       = "overrides"
	serverOverridesDir = "server-overrides"
)

// ErrCorrupt reports an archive that cannot serve as an install source:
// not a zip, no parsable index, or entries missing their essentials. It is
// raised before anything on disk is touched.
var ErrCorrupt = errors.New("corrupt modpack archive")

// Env support levels as written in the index.
const (
	EnvRequired    = "required"
	EnvOptional    = "optional"
	EnvUnsupported = "unsupported"
)

// Index is the parsed modrinth.index.json document.
type Index struct {
	FormatVersion int               `json:"formatVersion"`
	Game          string            `json:"game"`
	VersionID     string            `json:"versionId"`
	Name          string            `json:"name"`
	Summary       string            `json:"summary,omitempty"`
	Files         []File            `json:"files"`
	Dependencies  map[string]string `json:"dependencies"`
}

// File is one downloadable entry in the index. Hashes may name sha512
// and/or sha1; older packs omit env.
type File struct {
	Path      string            `json:"path"`
	Hashes    map[string]string `json:"hashes"`
	Env       *Env              `json:"env,omitempty"`
	Downloads []string          `json:"downloads"`
	FileSize  int64             `json:"fileSize"`
}

// Env declares per-side support for an entry.
type Env struct {
	Client string `json:"client"`
	Server string `json:"server"`
}

// Archive is an opened pack. Override content stays inside the zip until
// read through an Override's Open.
type Archive struct {
	Index Index

	zr *zip.Reader
}

// Override is one file from the archive's override trees, addressed by its
// instance-relative path.
type Override struct {
	Path string
	Open func() (io.ReadCloser, error)
}

// Open parses pack bytes. Any structural problem reports ErrCorrupt.
func Open(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var indexFile *zip.File
	for _, f := range zr.File {
		if f.Name == indexName {
			indexFile = f
			break
		}
	}
	if indexFile == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrCorrupt, indexName)
	}

	rc, err := indexFile.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: opening index: %v", ErrCorrupt, err)
	}
	defer rc.Close()

	var idx Index
	if err := json.NewDecoder(rc).Decode(&idx); err != nil {
		return nil, fmt.Errorf("%w: parsing index: %v", ErrCorrupt, err)
	}

	for i, f := range idx.Files {
		rel, ok := safeRelPath(f.Path)
		if !ok {
			return nil, fmt.Errorf("%w: index entry path %q escapes the instance directory", ErrCorrupt, f.Path)
		}
		if len(f.Downloads) == 0 {
			return nil, fmt.Errorf("%w: index entry %q has no download URLs", ErrCorrupt, f.Path)
		}
		idx.Files[i].Path = rel
	}

	return &Archive{Index: idx, zr: zr}, nil
}

// Overrides lists the archive's override files. When both trees carry the
// same path, the server-overrides copy wins.
func (a *Archive) Overrides() ([]Override, error) {
	byPath := make(map[string]Override)

	collect := func(tree string) error {
		prefix := tree + "/"
		for _, f := range a.zr.File {
			if f.FileInfo().IsDir() || !strings.HasPrefix(f.Name, prefix) {
				continue
			}
			rel, ok := safeRelPath(strings.TrimPrefix(f.Name, prefix))
			if !ok {
				return fmt.Errorf("%w: override path %q escapes the instance directory", ErrCorrupt, f.Name)
			}
			byPath[rel] = Override{Path: rel, Open: f.Open}
		}
		return nil
	}

	if err := collect(overridesDir); err != nil {
		return nil, err
	}
	if err := collect(serverOverridesDir); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	out := make([]Override, 0, len(byPath))
	for _, p := range paths {
		out = append(out, byPath[p])
	}
	return out, nil
}

// safeRelPath normalizes an archive path and rejects anything that would
// land outside the instance directory.
func safeRelPath(p string) (string, bool) {
	cleaned := path.Clean(p)
	if cleaned == "" || cleaned == "." || strings.HasPrefix(cleaned, "/") {
		return "", false
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}
