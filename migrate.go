package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/rusq/wipemydiscord/internal/settings"
)

// legacyFile is the name of the plain JSON settings file written by the
// plugin version of the cleaner.
const legacyFile = "delete_personal_messages_settings.json"

// migrateSettings moves plain JSON settings into the encrypted store.  The
// plain record may be either in legacyPath, or in the store file itself, if
// the user has copied it there.  It returns true if anything was migrated.
// The legacy file is removed after the successful migration.
func migrateSettings(st *settings.Store, legacyPath string) (bool, error) {
	if ok, err := isPlainJSON(st.Path); err != nil {
		return false, err
	} else if ok {
		if err := importJSON(st, st.Path); err != nil {
			return false, err
		}
		return true, nil
	}

	if legacyPath == "" {
		return false, nil
	}
	if ok, err := isPlainJSON(legacyPath); err != nil || !ok {
		return false, err
	}
	if _, err := os.Stat(st.Path); err == nil {
		// the store wins.
		return false, nil
	}
	if err := importJSON(st, legacyPath); err != nil {
		return false, err
	}
	if err := os.Remove(legacyPath); err != nil {
		return true, fmt.Errorf("migrated, but failed to remove the legacy file: %w", err)
	}
	return true, nil
}

// isPlainJSON returns true if the file looks like a JSON object.  Missing and
// empty files are not JSON.
func isPlainJSON(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	b := make([]byte, 64)
	n, err := f.Read(b)
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read settings file: %w", err)
	}
	b = bytes.TrimLeft(b[:n], " \t\r\n\uFEFF")
	return len(b) > 0 && b[0] == '{', nil
}

func importJSON(st *settings.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))
	s, err := settings.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("invalid legacy settings: %w", err)
	}
	if err := st.Save(s); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
