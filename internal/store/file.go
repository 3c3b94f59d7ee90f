package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/onpipiece/onpi-platform/internal/model"
)

// fileStore keeps every record in one JSON document with a top-level
// "users" array. Every write is a whole-document read-modify-write behind an
// in-process mutex; there is no cross-process lock, so concurrent server
// processes sharing one file can lose updates. That limitation is accepted,
// not masked.
type fileStore struct {
	path string
	mu   sync.Mutex
}

type fileDoc struct {
	Users []model.User `json:"users"`
}

func newFileStore(path string) (*fileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, unavailable("creating data directory", err)
		}
	}
	s := &fileStore{path: path}
	// Probe readability once at startup so a corrupt file fails fast.
	if _, err := s.read(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileStore) Kind() string { return "file" }

func (s *fileStore) Close(context.Context) error { return nil }

func (s *fileStore) read() (*fileDoc, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileDoc{Users: []model.User{}}, nil
		}
		return nil, unavailable("reading data file", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return &fileDoc{Users: []model.User{}}, nil
	}
	doc := &fileDoc{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, malformed("parsing data file", err)
	}
	if doc.Users == nil {
		doc.Users = []model.User{}
	}
	return doc, nil
}

func (s *fileStore) write(doc *fileDoc) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return unavailable("encoding data file", err)
	}
	// Temp file + rename keeps a crashed write from truncating the document.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".users-*.json")
	if err != nil {
		return unavailable("creating temp file", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(name)
		return unavailable("writing data file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return unavailable("closing data file", err)
	}
	if err := os.Rename(name, s.path); err != nil {
		os.Remove(name)
		return unavailable("replacing data file", err)
	}
	return nil
}

func (s *fileStore) find(match func(*model.User) bool) (*model.User, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	for i := range doc.Users {
		if match(&doc.Users[i]) {
			u := doc.Users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fileStore) ByAccountID(_ context.Context, accountID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(u *model.User) bool { return u.AccountID == accountID })
}

func (s *fileStore) BySessionToken(_ context.Context, token string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(u *model.User) bool { return u.SessionToken == token })
}

func (s *fileStore) ByResetToken(_ context.Context, token string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	return s.find(func(u *model.User) bool {
		return u.ResetToken == token && u.HasValidReset(now)
	})
}

func (s *fileStore) ByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(u *model.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *fileStore) Insert(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	for i := range doc.Users {
		if doc.Users[i].AccountID == user.AccountID {
			return fmt.Errorf("%w: %s", ErrConflict, user.AccountID)
		}
	}
	doc.Users = append(doc.Users, *user)
	return s.write(doc)
}

func (s *fileStore) UpdateFields(_ context.Context, accountID string, fields Fields) error {
	normalized, err := Normalize(fields)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	for i := range doc.Users {
		if doc.Users[i].AccountID == accountID {
			Apply(&doc.Users[i], normalized)
			return s.write(doc)
		}
	}
	return ErrNotFound
}

func (s *fileStore) All(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Users, nil
}
