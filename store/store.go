package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"cinebooker-cli/model"
)

const (
	tokenFile = "token"
	userFile  = "user.json"

	movieCacheTTL   = 10 * time.Minute
	theatreCacheTTL = 72 * time.Hour
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Store persists the session under the config directory and API responses
// under the cache directory.
type Store struct {
	configDir string
	cacheDir  string
}

type cacheEnvelope[T any] struct {
	UpdatedAt time.Time `json:"updated_at"`
	Data      T         `json:"data"`
}

func New(configDir string, cacheDir string) *Store {
	return &Store{configDir: configDir, cacheDir: cacheDir}
}

func (s *Store) LoadToken() (string, error) {
	data, err := os.ReadFile(s.configPath(tokenFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Store) SaveToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is required")
	}
	return writeFile(s.configPath(tokenFile), []byte(token), 0o600)
}

// LoadUser returns the cached user profile, or nil when none is stored.
func (s *Store) LoadUser() (*model.User, error) {
	data, err := os.ReadFile(s.configPath(userFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, errors.New("invalid stored user format")
	}
	return &user, nil
}

func (s *Store) SaveUser(user model.User) error {
	payload, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(s.configPath(userFile), payload, 0o600)
}

// ClearSession removes the token and the cached user together. Missing files
// are not an error.
func (s *Store) ClearSession() error {
	var errs []error
	for _, name := range []string{tokenFile, userFile} {
		if err := os.Remove(s.configPath(name)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) LoadMovieCache() ([]model.Movie, bool, error) {
	cache, err := loadCache[[]model.Movie](s.cachePath("movies.json"))
	if err != nil {
		return nil, false, err
	}
	return cache.Data, !cache.UpdatedAt.IsZero() && time.Since(cache.UpdatedAt) <= movieCacheTTL, nil
}

func (s *Store) SaveMovieCache(movies []model.Movie) error {
	return saveCache(s.cachePath("movies.json"), movies)
}

func (s *Store) LoadTheatreCache(theatreID string) (model.Theatre, bool, error) {
	if strings.TrimSpace(theatreID) == "" {
		return model.Theatre{}, false, errors.New("theatre id is required")
	}
	cache, err := loadCache[model.Theatre](s.cachePath(fmt.Sprintf("theatre_%s.json", safeName(theatreID))))
	if err != nil {
		return model.Theatre{}, false, err
	}
	return cache.Data, cache.Data.Id != "" && time.Since(cache.UpdatedAt) <= theatreCacheTTL, nil
}

func (s *Store) SaveTheatreCache(theatre model.Theatre) error {
	if strings.TrimSpace(theatre.Id) == "" {
		return errors.New("theatre id is required")
	}
	return saveCache(s.cachePath(fmt.Sprintf("theatre_%s.json", safeName(theatre.Id))), theatre)
}

func loadCache[T any](path string) (cacheEnvelope[T], error) {
	var cache cacheEnvelope[T]
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cache, nil
		}
		return cache, err
	}
	if err := json.Unmarshal(data, &cache); err != nil {
		return cache, err
	}
	return cache, nil
}

func saveCache[T any](path string, data T) error {
	cache := cacheEnvelope[T]{
		UpdatedAt: time.Now(),
		Data:      data,
	}
	payload, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, payload, 0o644)
}

func writeFile(path string, payload []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, payload, perm)
}

func (s *Store) configPath(name string) string {
	return filepath.Join(s.configDir, name)
}

func (s *Store) cachePath(name string) string {
	return filepath.Join(s.cacheDir, name)
}

func safeName(id string) string {
	return unsafeNameChars.ReplaceAllString(strings.TrimSpace(id), "_")
}
