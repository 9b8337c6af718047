package simple

import (
	"encoding/gob"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const modelFormatVersion = 1

// modelFile is the on-disk format written by Save.
type modelFile struct {
	Version    int
	CreatedAt  int64
	Config     Config
	LayerSizes []int
	Weights    [][][]float32
	Biases     [][]float32
	// Meta carries caller data stored alongside the weights, e.g. the
	// feature order the model was trained on.
	Meta map[string]string
}

// Save writes the model to path with encoding/gob. The write is atomic
// (temp file then rename). Optimizer state is not saved.
func (m *Model) Save(path string, meta map[string]string) error {
	if path == "" {
		return fmt.Errorf("empty model path")
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	mf := modelFile{
		Version:    modelFormatVersion,
		CreatedAt:  time.Now().Unix(),
		Config:     m.Config,
		LayerSizes: m.layerSizes,
		Weights:    m.weights,
		Biases:     m.biases,
		Meta:       meta,
	}
	if err := gob.NewEncoder(tmpFile).Encode(&mf); err != nil {
		return fmt.Errorf("encode model to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		m.Logger.Warn("sync temp model file", zap.Error(err))
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp model file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp model to target: %w", err)
	}
	return nil
}

// Load reads a model written by Save and returns it with its metadata.
func Load(path string) (*Model, map[string]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open model file %s: %w", path, err)
	}
	defer fh.Close()

	var mf modelFile
	if err := gob.NewDecoder(fh).Decode(&mf); err != nil {
		return nil, nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if mf.Version != modelFormatVersion {
		return nil, nil, fmt.Errorf("model version mismatch: file=%d expected=%d", mf.Version, modelFormatVersion)
	}
	if len(mf.LayerSizes) < 2 || len(mf.Weights) != len(mf.LayerSizes)-1 || len(mf.Biases) != len(mf.Weights) {
		return nil, nil, fmt.Errorf("model %s: inconsistent layer layout %v", path, mf.LayerSizes)
	}
	for l, W := range mf.Weights {
		if len(W) != mf.LayerSizes[l+1] || len(mf.Biases[l]) != mf.LayerSizes[l+1] {
			return nil, nil, fmt.Errorf("model %s: layer %d has wrong output size", path, l)
		}
		for _, row := range W {
			if len(row) != mf.LayerSizes[l] {
				return nil, nil, fmt.Errorf("model %s: layer %d has wrong input size", path, l)
			}
		}
	}

	m := &Model{
		Config:     mf.Config,
		Logger:     zap.NewNop(),
		layerSizes: mf.LayerSizes,
		weights:    mf.Weights,
		biases:     mf.Biases,
		rng:        rand.New(rand.NewSource(mf.Config.Seed)),
	}
	return m, mf.Meta, nil
}
