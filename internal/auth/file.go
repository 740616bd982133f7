package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// FileProvider persists credentials as JSON on disk and serves them as
// the current identity. The login flow writes via Set; the engine reads
// via Current.
type FileProvider struct {
	mu   sync.RWMutex
	path string
	id   Identity
	ok   bool
}

// NewFileProvider loads credentials from path if present. A missing or
// unreadable file yields a provider with no identity, not an error.
func NewFileProvider(path string) *FileProvider {
	p := &FileProvider{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return p
	}
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil || !id.Valid() {
		return p
	}
	p.id = id
	p.ok = true
	return p
}

// Current implements Provider.
func (p *FileProvider) Current() (Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.id, p.ok
}

// Set stores a new identity and writes it to disk.
func (p *FileProvider) Set(id Identity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.id = id
	p.ok = id.Valid()
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0600)
}

// Clear forgets the identity and removes the credentials file.
func (p *FileProvider) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.id = Identity{}
	p.ok = false
	err := os.Remove(p.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
