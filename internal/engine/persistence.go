package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Persistence handles the disk I/O for the MemStore.
// Each profile lives in its own JSON file: <DataDir>/<profile>.json.
type Persistence struct {
	DataDir string
	mu      sync.Mutex // Protects concurrent writes to the filesystem
	logger  *zap.Logger
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir string) (*Persistence, error) {
	// The directory holds bearer tokens, keep it private to the user
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Persistence{DataDir: dir, logger: zap.NewNop()}, nil
}

// Path returns the file backing a profile.
func (p *Persistence) Path(profile string) string {
	return filepath.Join(p.DataDir, profile+".json")
}

// SaveProfile writes a single profile's data to disk atomically.
func (p *Persistence) SaveProfile(profile string, data map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if data == nil {
		data = map[string]string{}
	}
	filePath := p.Path(profile)
	tempPath := filePath + ".tmp"

	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tempPath, bytes, 0600); err != nil {
		return err
	}
	// Readers see either the old file or the new one, never a torn write.
	return os.Rename(tempPath, filePath)
}

// LoadProfile reads one profile. A missing file yields an empty map.
func (p *Persistence) LoadProfile(profile string) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	content, err := os.ReadFile(p.Path(profile))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	data := map[string]string{}
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", profile, err)
	}
	return data, nil
}

// LoadAll returns all profile data found in the data directory.
func (p *Persistence) LoadAll() (map[string]map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	allData := make(map[string]map[string]string)

	files, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		profile := strings.TrimSuffix(file.Name(), ".json")

		content, err := os.ReadFile(filepath.Join(p.DataDir, file.Name()))
		if err != nil {
			p.logger.Warn("skipping unreadable profile file", zap.String("file", file.Name()), zap.Error(err))
			continue
		}

		var kv map[string]string
		if err := json.Unmarshal(content, &kv); err != nil {
			p.logger.Warn("skipping corrupt profile file", zap.String("file", file.Name()), zap.Error(err))
			continue
		}
		allData[profile] = kv
	}
	return allData, nil
}
