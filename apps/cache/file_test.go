// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestFileMedium(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	medium := NewFileMedium(path)

	data, err := medium.Read()
	if err != nil {
		t.Fatalf("TestFileMedium: Read of a missing file returned err == %s", err)
	}
	if data != nil {
		t.Fatalf("TestFileMedium: Read of a missing file returned data == %q, want nil", data)
	}

	want := []byte(`{"version":1,"tokens":{}}`)
	if err := medium.Write(want); err != nil {
		t.Fatalf("TestFileMedium: Write returned err == %s", err)
	}
	got, err := medium.Read()
	if err != nil {
		t.Fatalf("TestFileMedium: Read returned err == %s", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("TestFileMedium: Read returned %q, want %q", got, want)
	}

	// Overwrites replace the whole snapshot.
	want = []byte(`{"version":1,"tokens":{"k":{}}}`)
	if err := medium.Write(want); err != nil {
		t.Fatalf("TestFileMedium: second Write returned err == %s", err)
	}
	got, err = medium.Read()
	if err != nil {
		t.Fatalf("TestFileMedium: second Read returned err == %s", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("TestFileMedium: second Read returned %q, want %q", got, want)
	}
}

func TestFileMediumLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	medium := NewFileMedium(filepath.Join(dir, "tokens.json"))

	for i := 0; i < 3; i++ {
		if err := medium.Write([]byte("snapshot")); err != nil {
			t.Fatalf("TestFileMediumLeavesNoTempFiles: Write returned err == %s", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("TestFileMediumLeavesNoTempFiles: ReadDir returned err == %s", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tmp" {
			t.Errorf("TestFileMediumLeavesNoTempFiles: temp file %q left behind", entry.Name())
		}
	}
}

func TestFileMediumPersistedStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")

	store, err := NewPersistedStore(NewFileMedium(path))
	if err != nil {
		t.Fatalf("TestFileMediumPersistedStore: NewPersistedStore returned err == %s", err)
	}
	store.Set("key", testItem)

	reloaded, err := NewPersistedStore(NewFileMedium(path))
	if err != nil {
		t.Fatalf("TestFileMediumPersistedStore: reload returned err == %s", err)
	}
	if !reloaded.Contains("key") {
		t.Fatalf("TestFileMediumPersistedStore: entry did not survive a reload from disk")
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("TestFileMediumPersistedStore: Stat returned err == %s", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("TestFileMediumPersistedStore: snapshot has perm %v, want 0600", perm)
		}
	}
}
