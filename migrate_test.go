package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rusq/wipemydiscord/internal/settings"
)

const legacyJSON = `{
    "channel_id": "1111",
    "group_id": "2222",
    "limit": "all",
    "delete_all": true
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write: %s", err)
	}
}

func Test_migrateSettings(t *testing.T) {
	want := settings.Settings{
		Version:   settings.CurrentVersion,
		ChannelID: "1111",
		GroupID:   "2222",
		Limit:     "all",
		DeleteAll: true,
	}

	t.Run("plain json in place", func(t *testing.T) {
		dir := t.TempDir()
		st := &settings.Store{Path: filepath.Join(dir, "settings.dat")}
		writeFile(t, st.Path, legacyJSON)

		migrated, err := migrateSettings(st, "")
		require.NoError(t, err)
		assert.True(t, migrated)

		got, err := st.Load()
		require.NoError(t, err)
		assert.Equal(t, want, got)

		// second run is a no-op
		migrated, err = migrateSettings(st, "")
		require.NoError(t, err)
		assert.False(t, migrated)
	})
	t.Run("byte order mark", func(t *testing.T) {
		dir := t.TempDir()
		st := &settings.Store{Path: filepath.Join(dir, "settings.dat")}
		writeFile(t, st.Path, "\uFEFF"+legacyJSON)

		migrated, err := migrateSettings(st, "")
		require.NoError(t, err)
		assert.True(t, migrated)

		got, err := st.Load()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
	t.Run("legacy file", func(t *testing.T) {
		dir := t.TempDir()
		st := &settings.Store{Path: filepath.Join(dir, "settings.dat")}
		legacy := filepath.Join(dir, legacyFile)
		writeFile(t, legacy, legacyJSON)

		migrated, err := migrateSettings(st, legacy)
		require.NoError(t, err)
		assert.True(t, migrated)
		assert.NoFileExists(t, legacy)

		got, err := st.Load()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
	t.Run("store wins over legacy file", func(t *testing.T) {
		dir := t.TempDir()
		st := &settings.Store{Path: filepath.Join(dir, "settings.dat")}
		require.NoError(t, st.Save(settings.Default()))
		legacy := filepath.Join(dir, legacyFile)
		writeFile(t, legacy, legacyJSON)

		migrated, err := migrateSettings(st, legacy)
		require.NoError(t, err)
		assert.False(t, migrated)
		assert.FileExists(t, legacy)

		got, err := st.Load()
		require.NoError(t, err)
		assert.Equal(t, settings.Default(), got)
	})
	t.Run("nothing to migrate", func(t *testing.T) {
		dir := t.TempDir()
		st := &settings.Store{Path: filepath.Join(dir, "settings.dat")}
		migrated, err := migrateSettings(st, filepath.Join(dir, legacyFile))
		require.NoError(t, err)
		assert.False(t, migrated)
	})
	t.Run("invalid json", func(t *testing.T) {
		dir := t.TempDir()
		st := &settings.Store{Path: filepath.Join(dir, "settings.dat")}
		writeFile(t, st.Path, `{"limit": `)
		migrated, err := migrateSettings(st, "")
		assert.Error(t, err)
		assert.False(t, migrated)
	})
}

func Test_isPlainJSON(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"object", `{"a":1}`, true},
		{"leading space", "\n  {}", true},
		{"byte order mark", "\uFEFF{\"limit\": \"5\"}", true},
		{"empty", "", false},
		{"binary", "\x00\x01\x02", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			writeFile(t, path, tt.content)
			got, err := isPlainJSON(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
