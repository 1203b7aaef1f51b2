package client

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Session is the persisted login: the bearer token and who it belongs to.
type Session struct {
	Token  string `json:"token"`
	UserID uint   `json:"userId"`
}

// LoadSession reads a saved session. A missing file yields an empty session.
func LoadSession(path string) (Session, error) {
	var s Session
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// SaveSession writes the session readable by the current user only.
func SaveSession(path string, s Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// ClearSession removes a saved session.
func ClearSession(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Valid reports whether the session carries credentials.
func (s Session) Valid() bool {
	return s.Token != "" && s.UserID != 0
}
