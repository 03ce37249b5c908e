package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slopesense/rockfall-risk/internal/contract"
)

// Artifact file names under the artifacts directory. The three files form a
// matched triple; loading mixes from different training runs is a
// configuration error.
const (
	ModelFile        = "model.json"
	FeatureNamesFile = "feature_names.json"
	MetadataFile     = "metadata.json"
)

// SaveArtifacts writes the matched triple atomically enough for a local
// filesystem: each file is written whole, metadata last so a complete
// metadata file implies a complete triple.
func SaveArtifacts(dir string, m *Model, names []string, meta Metadata) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, ModelFile), m); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, FeatureNamesFile), names); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, MetadataFile), meta)
}

// LoadArtifacts reads the triple back and rebuilds the feature contract,
// versioned by the training timestamp. Any missing or unparsable file fails
// the whole load; partial triples are never returned.
func LoadArtifacts(dir string) (*Model, *contract.Contract, Metadata, error) {
	var m Model
	if err := readJSON(filepath.Join(dir, ModelFile), &m); err != nil {
		return nil, nil, Metadata{}, err
	}
	if m.Scaler == nil {
		return nil, nil, Metadata{}, fmt.Errorf("model artifact %s has no scaler", ModelFile)
	}

	var names []string
	if err := readJSON(filepath.Join(dir, FeatureNamesFile), &names); err != nil {
		return nil, nil, Metadata{}, err
	}

	var meta Metadata
	if err := readJSON(filepath.Join(dir, MetadataFile), &meta); err != nil {
		return nil, nil, Metadata{}, err
	}

	c, err := contract.New(names, meta.TrainedAt.Format("20060102T150405Z"))
	if err != nil {
		return nil, nil, Metadata{}, fmt.Errorf("feature contract artifact: %w", err)
	}
	return &m, c, meta, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse artifact %s: %w", filepath.Base(path), err)
	}
	return nil
}
