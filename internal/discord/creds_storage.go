package discord

import (
	"encoding/json"
	"io"

	"github.com/rusq/encio"
)

type credsStorage struct {
	filename string
}

// creds is the structure of data in the storage.
type creds struct {
	Token string `json:"token,omitempty"`
}

func (cs credsStorage) IsAvailable() bool {
	return cs.filename != ""
}

func (cs credsStorage) Save(token string) error {
	f, err := encio.Create(cs.filename)
	if err != nil {
		return err
	}
	defer f.Close()

	return cs.write(f, token)
}

func (cs credsStorage) write(w io.Writer, token string) error {
	enc := json.NewEncoder(w)
	return enc.Encode(creds{Token: token})
}

func (cs credsStorage) Load() (string, error) {
	f, err := encio.Open(cs.filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return cs.read(f)
}

func (cs credsStorage) read(r io.Reader) (string, error) {
	var c creds
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return "", err
	}
	return c.Token, nil
}
