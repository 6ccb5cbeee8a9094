// Package settings keeps the values of the interactive form between runs.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/rusq/encio"

	"github.com/rusq/wipemydiscord/internal/purge"
)

// CurrentVersion is the version of the settings record written by Save.
const CurrentVersion = 1

// Settings is the persisted state of the interactive form.
type Settings struct {
	Version   int  `json:"version"`
	ChannelID Text `json:"channel_id"`
	DMID      Text `json:"dm_id"`
	GroupID   Text `json:"group_id"`
	Limit     Text `json:"limit"`
	DeleteAll bool `json:"delete_all"`
}

// Default returns the settings used when nothing is stored.
func Default() Settings {
	return Settings{
		Version: CurrentVersion,
		Limit:   Text(strconv.Itoa(purge.DefaultLimit)),
	}
}

// Text is a string that also accepts JSON numbers, as older records may
// have the limit stored as a number.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*t = Text(n.String())
	return nil
}

func (t Text) String() string {
	return string(t)
}

// Decode reads the settings record from r.  Missing fields take the default
// values.
func Decode(r io.Reader) (Settings, error) {
	s := Default()
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Default(), err
	}
	if s.Version == 0 {
		s.Version = CurrentVersion
	}
	return s, nil
}

// Encode writes the settings record to w.
func Encode(w io.Writer, s Settings) error {
	s.Version = CurrentVersion
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(s)
}

// Store is the encrypted settings file in Path.
type Store struct {
	Path string
	mu   sync.Mutex
}

// Load loads the settings.  If the file does not exist, it returns the
// defaults and no error.  If the file is unreadable, it returns the defaults
// and the error, the caller may carry on with the defaults.
func (st *Store) Load() (Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.load()
}

func (st *Store) load() (Settings, error) {
	f, err := encio.Open(st.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	s, err := Decode(f)
	if err != nil {
		return Default(), fmt.Errorf("decode: %w", err)
	}
	return s, nil
}

// Save stores the settings.
func (st *Store) Save(s Settings) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.save(s)
}

func (st *Store) save(s Settings) error {
	f, err := encio.Create(st.Path)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if err := Encode(f, s); err != nil {
		f.Close()
		return fmt.Errorf("encode: %w", err)
	}
	return f.Close()
}

// Update loads the settings, calls fn to modify them and saves the result.
// Unreadable settings are replaced with the defaults.
func (st *Store) Update(fn func(s *Settings)) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, _ := st.load()
	fn(&s)
	return st.save(s)
}
