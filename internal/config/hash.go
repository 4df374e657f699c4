package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// ChecksumManifest is the sidecar written next to the config file
// (<config>.checksum) to detect out-of-band edits.
type ChecksumManifest struct {
	Version     int    `yaml:"version"`
	GeneratedAt string `yaml:"generated_at"`
	Hash        string `yaml:"hash"`
}

const checksumSuffix = ".checksum"

// ComputeHash returns the hex BLAKE3 hash of data.
func ComputeHash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// WriteChecksum records the current hash of the config file at configPath
// in its sidecar manifest.
func WriteChecksum(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	manifest := ChecksumManifest{
		Version:     1,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Hash:        ComputeHash(data),
	}

	out, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal checksum manifest: %w", err)
	}

	// Restrictive permissions: the manifest is what tampering is checked against.
	if err := os.WriteFile(configPath+checksumSuffix, out, 0600); err != nil {
		return fmt.Errorf("failed to write checksum manifest: %w", err)
	}
	return nil
}

// VerifyIntegrity checks data against the sidecar manifest for configPath.
// A missing sidecar is not an error; integrity checking is opt-in via
// `porter config hash-update`.
func VerifyIntegrity(configPath string, data []byte) error {
	raw, err := os.ReadFile(configPath + checksumSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read checksum manifest: %w", err)
	}

	var manifest ChecksumManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return fmt.Errorf("failed to parse checksum manifest: %w", err)
	}
	if manifest.Version != 1 {
		return fmt.Errorf("unsupported checksum manifest version: %d", manifest.Version)
	}

	if actual := ComputeHash(data); actual != manifest.Hash {
		return fmt.Errorf("config integrity check failed for %s: expected %s, got %s\n"+
			"If you edited the file intentionally, run: porter config hash-update",
			configPath, manifest.Hash, actual)
	}
	return nil
}
