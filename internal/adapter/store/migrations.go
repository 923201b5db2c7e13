package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"
	"go.etcd.io/bbolt"

	"routine/config"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyConfigHash    = []byte("config_hash")
)

// SchemaInfo stores schema version and configuration hash.
type SchemaInfo struct {
	Version    int    `json:"version"`
	ConfigHash string `json:"config_hash"`
}

// GetSchemaInfo retrieves the current schema info from the database.
func (s *BoltStore) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}

		if versionData := b.Get(keySchemaVersion); versionData != nil {
			if err := json.Unmarshal(versionData, &info.Version); err != nil {
				info.Version = 0
			}
		}
		if hashData := b.Get(keyConfigHash); hashData != nil {
			info.ConfigHash = string(hashData)
		}
		return nil
	})
	return &info, err
}

// SetSchemaInfo stores the schema info in the database.
func (s *BoltStore) SetSchemaInfo(info *SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)

		versionData, err := json.Marshal(info.Version)
		if err != nil {
			return err
		}
		if err := b.Put(keySchemaVersion, versionData); err != nil {
			return err
		}
		return b.Put(keyConfigHash, []byte(info.ConfigHash))
	})
}

// ComputeConfigHash hashes the settings that make stored vectors comparable.
// A different hash means the stored embeddings must be rebuilt.
func ComputeConfigHash(cfg *config.Config) string {
	relevant := struct {
		Provider  string `json:"provider"`
		Model     string `json:"model"`
		Dimension int    `json:"dimension"`
	}{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// MigrationResult describes the result of a migration check.
type MigrationResult struct {
	NeedsMigration bool
	NeedsRebuild   bool
	OldVersion     int
	NewVersion     int
	Reason         string
}

// CheckMigration checks if migration or rebuild is needed.
func (s *BoltStore) CheckMigration(cfg *config.Config) (*MigrationResult, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: info.Version,
		NewVersion: CurrentSchemaVersion,
	}

	switch {
	case info.Version == 0:
		result.NeedsMigration = true
		result.Reason = "initializing schema version"
	case info.Version < CurrentSchemaVersion:
		result.NeedsMigration = true
		result.Reason = fmt.Sprintf("schema upgrade from v%d to v%d", info.Version, CurrentSchemaVersion)
	case info.Version > CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("database created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
		return result, nil
	}

	if info.ConfigHash != "" && info.ConfigHash != ComputeConfigHash(cfg) {
		result.NeedsRebuild = true
		result.Reason = "embedding configuration changed"
	}
	return result, nil
}

// Migrate records the current schema version and config hash. Buckets are
// created by NewBoltStore, so no data moves between versions yet.
func (s *BoltStore) Migrate(cfg *config.Config) error {
	return s.SetSchemaInfo(&SchemaInfo{
		Version:    CurrentSchemaVersion,
		ConfigHash: ComputeConfigHash(cfg),
	})
}

// Clear removes all products and vectors, keeping schema metadata.
func (s *BoltStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketProducts, bucketVectors} {
			if err := tx.DeleteBucket(name); err != nil && err != bbolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.entries = make(map[string]Candidate)
	return nil
}

// Prepare migrates the schema and clears stored vectors when the embedding
// configuration changed. It reports whether a rebuild happened.
func (s *BoltStore) Prepare(cfg *config.Config) (bool, string, error) {
	result, err := s.CheckMigration(cfg)
	if err != nil {
		return false, "", err
	}
	if result.NeedsRebuild {
		if err := s.Clear(); err != nil {
			return false, "", fmt.Errorf("failed to clear store: %w", err)
		}
	}
	if result.NeedsMigration || result.NeedsRebuild {
		if err := s.Migrate(cfg); err != nil {
			return false, "", err
		}
	}
	return result.NeedsRebuild, result.Reason, nil
}
