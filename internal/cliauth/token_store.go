package cliauth

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTokenStorageDir is the token directory relative to the home
// directory.
const DefaultTokenStorageDir = ".config/evault/tokens"

// TokenType marks tokens issued by the evault backend.
const TokenType = "evault-session"

const tokenExpiryBuffer = 60 * time.Second

// TokenStore keeps evault access tokens, one per backend URL.
//
// Files are written with 0600 permissions inside a 0700 directory. Token
// values are never logged.
type TokenStore struct {
	mu         sync.RWMutex
	storageDir string
	tokens     map[string]*StoredToken
	fileMode   bool
}

// StoredToken is an access token with the metadata needed to reuse it.
type StoredToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Expiry      time.Time `json:"expiry,omitempty"`
	ServerURL   string    `json:"server_url"`
	Login       string    `json:"login,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TokenStoreConfig configures the token store.
type TokenStoreConfig struct {
	// StorageDir defaults to ~/.config/evault/tokens.
	StorageDir string

	// FileMode enables file persistence. If false, tokens live in memory.
	FileMode bool
}

// NewTokenStore creates a token store.
func NewTokenStore(cfg TokenStoreConfig) (*TokenStore, error) {
	storageDir := cfg.StorageDir
	if storageDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		storageDir = filepath.Join(homeDir, DefaultTokenStorageDir)
	}

	store := &TokenStore{
		storageDir: storageDir,
		tokens:     make(map[string]*StoredToken),
		fileMode:   cfg.FileMode,
	}

	if cfg.FileMode {
		if err := os.MkdirAll(storageDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create token storage directory: %w", err)
		}
	}
	return store, nil
}

// StoreToken stores token for serverURL, replacing any previous one.
func (s *TokenStore) StoreToken(serverURL, login string, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return errors.New("refusing to store an empty token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = TokenType
	}
	stored := &StoredToken{
		AccessToken: token.AccessToken,
		TokenType:   tokenType,
		Expiry:      token.Expiry,
		ServerURL:   NormalizeServerURL(serverURL),
		Login:       login,
		CreatedAt:   time.Now(),
	}

	key := tokenKey(serverURL)
	s.tokens[key] = stored

	if s.fileMode {
		if err := s.writeTokenFile(key, stored); err != nil {
			slog.Warn("SECURITY_AUDIT: token storage failed",
				"event", "token_store_failed",
				"server_url", stored.ServerURL,
				"error", err.Error(),
			)
			return fmt.Errorf("failed to persist token: %w", err)
		}
		slog.Info("SECURITY_AUDIT: token stored",
			"event", "token_stored",
			"server_url", stored.ServerURL,
		)
	}
	return nil
}

// GetToken returns the token for serverURL, or nil if there is none or it
// has expired.
func (s *TokenStore) GetToken(serverURL string) *StoredToken {
	key := tokenKey(serverURL)

	s.mu.RLock()
	if token, ok := s.tokens[key]; ok && token.Valid() {
		s.mu.RUnlock()
		return token
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if token, ok := s.tokens[key]; ok {
		if token.Valid() {
			return token
		}
		delete(s.tokens, key)
		return nil
	}

	if s.fileMode {
		token, err := s.readTokenFile(key)
		if err == nil && token.Valid() {
			s.tokens[key] = token
			return token
		}
	}
	return nil
}

// DeleteToken removes the token for serverURL. Deleting a missing token is
// not an error.
func (s *TokenStore) DeleteToken(serverURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tokenKey(serverURL)
	delete(s.tokens, key)

	if s.fileMode {
		if err := s.deleteTokenFile(key); err != nil {
			return fmt.Errorf("failed to delete token file: %w", err)
		}
	}
	slog.Info("SECURITY_AUDIT: token deleted",
		"event", "token_deleted",
		"server_url", NormalizeServerURL(serverURL),
	)
	return nil
}

// Clear removes every stored token.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = make(map[string]*StoredToken)
	if !s.fileMode {
		return nil
	}

	entries, err := os.ReadDir(s.storageDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read token directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(s.storageDir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove token file %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Valid reports whether the token is present and not about to expire. A
// token without expiry is valid until the backend says otherwise.
func (t *StoredToken) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.Expiry.IsZero() {
		return true
	}
	return time.Now().Add(tokenExpiryBuffer).Before(t.Expiry)
}

// ToOAuth2Token converts the stored token.
func (t *StoredToken) ToOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: t.AccessToken,
		TokenType:   t.TokenType,
		Expiry:      t.Expiry,
	}
}

// NormalizeServerURL strips trailing slashes and lowercases the scheme and
// host so that equivalent URLs share one token.
func NormalizeServerURL(serverURL string) string {
	u := strings.TrimRight(strings.TrimSpace(serverURL), "/")
	if i := strings.Index(u, "://"); i >= 0 {
		rest := u[i+3:]
		host, path, _ := strings.Cut(rest, "/")
		u = strings.ToLower(u[:i]) + "://" + strings.ToLower(host)
		if path != "" {
			u += "/" + path
		}
	}
	return u
}

func tokenKey(serverURL string) string {
	hash := sha256.Sum256([]byte(NormalizeServerURL(serverURL)))
	return hex.EncodeToString(hash[:16])
}

func (s *TokenStore) tokenPath(key string) string {
	return filepath.Join(s.storageDir, key+".json")
}

func (s *TokenStore) writeTokenFile(key string, token *StoredToken) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := os.WriteFile(s.tokenPath(key), data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

func (s *TokenStore) readTokenFile(key string) (*StoredToken, error) {
	// #nosec G304 -- the path is built from a hash, not user input
	data, err := os.ReadFile(s.tokenPath(key))
	if err != nil {
		return nil, err
	}
	var token StoredToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &token, nil
}

func (s *TokenStore) deleteTokenFile(key string) error {
	err := os.Remove(s.tokenPath(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
