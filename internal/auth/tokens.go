/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package auth protects the HTTP transport with API tokens. Only SHA-256
// hashes of tokens are stored.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"bq-data-agent/internal/watch"
)

// DefaultTokenFileName is the token file looked up next to the binary
const DefaultTokenFileName = "bq-data-agent-tokens.yaml"

// Token validation errors
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenUnknown = errors.New("unknown token")
)

// minPrefixLength is the shortest hash prefix accepted by RemoveToken
const minPrefixLength = 8

// Token represents an API token with metadata
type Token struct {
	Hash       string     `yaml:"hash"`       // SHA256 hash of the token
	ExpiresAt  *time.Time `yaml:"expires_at"` // nil never expires
	Annotation string     `yaml:"annotation"`
	CreatedAt  time.Time  `yaml:"created_at"`
}

func (t *Token) expired(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}

// TokenStore manages API tokens
type TokenStore struct {
	mu      sync.RWMutex
	tokens  map[string]*Token
	path    string
	watcher *watch.FileWatcher
}

type tokenFile struct {
	Tokens map[string]*Token `yaml:"tokens"`
}

// GenerateToken creates a new random API token
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// HashToken creates a SHA256 hash of the token
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// NewTokenStore creates an empty store that saves to path
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{tokens: make(map[string]*Token), path: path}
}

// LoadTokenStore loads tokens from a YAML file
func LoadTokenStore(path string) (*TokenStore, error) {
	tokens, err := readTokenFile(path)
	if err != nil {
		return nil, err
	}
	return &TokenStore{tokens: tokens, path: path}, nil
}

// OpenTokenStore loads path, or returns an empty store when the file does
// not exist yet
func OpenTokenStore(path string) (*TokenStore, error) {
	store, err := LoadTokenStore(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewTokenStore(path), nil
	}
	return store, err
}

func readTokenFile(path string) (map[string]*Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file tokenFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	if file.Tokens == nil {
		file.Tokens = make(map[string]*Token)
	}
	return file.Tokens, nil
}

// Path returns the file backing the store
func (s *TokenStore) Path() string {
	return s.path
}

// Reload replaces the tokens with the current file contents
func (s *TokenStore) Reload() error {
	if s.path == "" {
		return fmt.Errorf("no path set for token store")
	}

	tokens, err := readTokenFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to reload token file: %w", err)
	}

	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()
	return nil
}

// Save writes the store to its file with owner-only permissions
func (s *TokenStore) Save() error {
	s.mu.RLock()
	data, err := yaml.Marshal(tokenFile{Tokens: s.tokens})
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// AddToken adds a new token to the store
func (s *TokenStore) AddToken(tokenID, hash, annotation string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[tokenID]; exists {
		return fmt.Errorf("token with ID '%s' already exists", tokenID)
	}

	s.tokens[tokenID] = &Token{
		Hash:       hash,
		ExpiresAt:  expiresAt,
		Annotation: annotation,
		CreatedAt:  time.Now().UTC(),
	}
	return nil
}

// RemoveToken removes a token by ID or by a hash prefix of at least eight
// characters
func (s *TokenStore) RemoveToken(identifier string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[identifier]; exists {
		delete(s.tokens, identifier)
		return true
	}

	if len(identifier) < minPrefixLength {
		return false
	}
	for id, token := range s.tokens {
		if strings.HasPrefix(token.Hash, identifier) {
			delete(s.tokens, id)
			return true
		}
	}
	return false
}

// Authenticate returns the ID of the stored token matching token
func (s *TokenStore) Authenticate(token string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash := HashToken(token)
	now := time.Now()
	for id, stored := range s.tokens {
		if stored.Hash != hash {
			continue
		}
		if stored.expired(now) {
			return "", ErrTokenExpired
		}
		return id, nil
	}
	return "", ErrTokenUnknown
}

// TokenInfo is a display-friendly representation of a token
type TokenInfo struct {
	ID         string
	HashPrefix string
	ExpiresAt  *time.Time
	Annotation string
	CreatedAt  time.Time
	Expired    bool
}

// ListTokens returns all tokens sorted by ID
func (s *TokenStore) ListTokens() []TokenInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	result := make([]TokenInfo, 0, len(s.tokens))
	for id, token := range s.tokens {
		prefix := token.Hash
		if len(prefix) > 12 {
			prefix = prefix[:12]
		}
		result = append(result, TokenInfo{
			ID:         id,
			HashPrefix: prefix,
			ExpiresAt:  token.ExpiresAt,
			Annotation: token.Annotation,
			CreatedAt:  token.CreatedAt,
			Expired:    token.expired(now),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// CleanupExpiredTokens removes expired tokens and returns how many went
func (s *TokenStore) CleanupExpiredTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, token := range s.tokens {
		if token.expired(now) {
			delete(s.tokens, id)
			removed++
		}
	}
	return removed
}

// StartWatching reloads the store whenever its file changes
func (s *TokenStore) StartWatching() error {
	if s.path == "" {
		return fmt.Errorf("no path set for token store")
	}

	w, err := watch.NewFileWatcher("tokens", s.path, s.Reload)
	if err != nil {
		return err
	}
	s.watcher = w
	w.Start()
	return nil
}

// StopWatching stops watching the token file
func (s *TokenStore) StopWatching() {
	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}
}

// GetDefaultTokenPath returns the default token file path. It searches
// /etc/bq-data-agent/ first, then the binary directory.
func GetDefaultTokenPath(binaryPath string) string {
	systemPath := filepath.Join("/etc/bq-data-agent", DefaultTokenFileName)
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return filepath.Join(filepath.Dir(binaryPath), DefaultTokenFileName)
}
