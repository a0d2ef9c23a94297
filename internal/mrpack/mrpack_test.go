package mrpack

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"testing"
)

type packEntry struct {
	name    string
	content string
}

func buildPack(t *testing.T, entries []packEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("zip create %s: %v", e.name, err)
		}
		if _, err := w.Write([]byte(e.content)); err != nil {
			t.Fatalf("zip write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

const sampleIndex = `{
	"formatVersion": 1,
	"game": "minecraft",
	"versionId": "1.2.0",
	"name": "Server Pack",
	"files": [
		{"path": "mods/sodium-extra.jar",
		 "hashes": {"sha512": "aa"},
		 "env": {"client": "required", "server": "unsupported"},
		 "downloads": ["https://cdn.example/sodium-extra.jar"],
		 "fileSize": 10},
		{"path": "mods/geyser.jar",
		 "hashes": {"sha1": "bb"},
		 "downloads": ["https://cdn.example/geyser.jar"],
		 "fileSize": 20}
	],
	"dependencies": {"minecraft": "1.20.1"}
}`

func TestOpenParsesIndex(t *testing.T) {
	t.Parallel()

	data := buildPack(t, []packEntry{{indexName, sampleIndex}})
	a, err := Open(data)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	idx := a.Index
	if idx.VersionID != "1.2.0" || idx.Name != "Server Pack" {
		t.Fatalf("unexpected index header: %+v", idx)
	}
	if len(idx.Files) != 2 {
		t.Fatalf("got %d files, want 2", len(idx.Files))
	}
	first := idx.Files[0]
	if first.Env == nil || first.Env.Server != EnvUnsupported {
		t.Fatalf("env not parsed: %+v", first)
	}
	if idx.Files[1].Env != nil {
		t.Fatalf("absent env should stay nil: %+v", idx.Files[1])
	}
	if idx.Dependencies["minecraft"] != "1.20.1" {
		t.Fatalf("dependencies not parsed: %v", idx.Dependencies)
	}
}

func TestOpenRejectsBadArchives(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data func(t *testing.T) []byte
	}{
		{
			name: "not a zip",
			data: func(t *testing.T) []byte { return []byte("definitely not a zip") },
		},
		{
			name: "missing index",
			data: func(t *testing.T) []byte {
				return buildPack(t, []packEntry{{"overrides/config/a.toml", "x"}})
			},
		},
		{
			name: "unparsable index",
			data: func(t *testing.T) []byte {
				return buildPack(t, []packEntry{{indexName, "{broken"}})
			},
		},
		{
			name: "entry without downloads",
			data: func(t *testing.T) []byte {
				return buildPack(t, []packEntry{{indexName,
					`{"versionId": "1", "files": [{"path": "mods/a.jar", "downloads": []}]}`}})
			},
		},
		{
			name: "entry escaping instance dir",
			data: func(t *testing.T) []byte {
				return buildPack(t, []packEntry{{indexName,
					`{"versionId": "1", "files": [{"path": "../evil.jar", "downloads": ["https://x/e.jar"]}]}`}})
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Open(tt.data(t))
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("Open error=%v, want ErrCorrupt", err)
			}
		})
	}
}

func TestOverrides(t *testing.T) {
	t.Parallel()

	data := buildPack(t, []packEntry{
		{indexName, `{"versionId": "1", "files": []}`},
		{"overrides/config/shared.toml", "base"},
		{"overrides/mods/extra.jar", "jarbytes"},
		{"server-overrides/config/shared.toml", "server"},
		{"client-overrides/config/client.toml", "ignored"},
	})

	a, err := Open(data)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	overrides, err := a.Overrides()
	if err != nil {
		t.Fatalf("Overrides failed: %v", err)
	}

	if len(overrides) != 2 {
		t.Fatalf("got %d overrides, want 2: %+v", len(overrides), overrides)
	}
	if overrides[0].Path != "config/shared.toml" || overrides[1].Path != "mods/extra.jar" {
		t.Fatalf("unexpected override paths: %+v", overrides)
	}

	rc, err := overrides[0].Open()
	if err != nil {
		t.Fatalf("override Open failed: %v", err)
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("override read failed: %v", err)
	}
	if string(content) != "server" {
		t.Fatalf("content=%q, want server-overrides copy to win", content)
	}
}

func TestOverridesRejectEscapingPaths(t *testing.T) {
	t.Parallel()

	data := buildPack(t, []packEntry{
		{indexName, `{"versionId": "1", "files": []}`},
		{"overrides/../config.toml", "x"},
	})

	a, err := Open(data)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := a.Overrides(); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Overrides error=%v, want ErrCorrupt", err)
	}
}
