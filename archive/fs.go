/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const metaSuffix = ".meta"

// FSStore stores objects as files under a root directory with a JSON
// sidecar for attributes.
type FSStore struct {
	root string
}

type fsMeta struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Size        int64             `json:"size"`
	CreatedAt   time.Time         `json:"created_at"`
}

// DefaultRoot is the fs archive directory used when none is configured.
const DefaultRoot = "./archive-data"

// NewFSStore returns a filesystem store rooted at root, creating it if needed.
func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		root = DefaultRoot
	}

	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create archive root: %w", err)
	}

	return &FSStore{root: root}, nil
}

func (s *FSStore) Driver() Driver { return DriverFilesystem }

func (s *FSStore) pathFor(key string) (string, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}

	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *FSStore) Put(_ context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	dataPath, err := s.pathFor(key)
	if err != nil {
		return Info{}, err
	}

	if _, err := os.Stat(dataPath); err == nil {
		return Info{}, fmt.Errorf("%w: %s", ErrExists, key)
	}

	if err := os.MkdirAll(filepath.Dir(dataPath), 0o750); err != nil {
		return Info{}, fmt.Errorf("failed to create archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return Info{}, fmt.Errorf("failed to create temp file: %w", err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	size, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return Info{}, fmt.Errorf("failed to write object: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return Info{}, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return Info{}, fmt.Errorf("failed to move object into place: %w", err)
	}

	meta := fsMeta{ContentType: opts.ContentType, Metadata: opts.Metadata, Size: size, CreatedAt: time.Now().UTC()}

	raw, err := json.Marshal(meta)
	if err != nil {
		return Info{}, fmt.Errorf("failed to encode metadata: %w", err)
	}

	if err := os.WriteFile(dataPath+metaSuffix, raw, 0o640); err != nil {
		return Info{}, fmt.Errorf("failed to write metadata: %w", err)
	}

	return s.info(key, meta), nil
}

func (s *FSStore) info(key string, meta fsMeta) Info {
	return Info{
		Key:          key,
		Size:         meta.Size,
		ContentType:  meta.ContentType,
		Metadata:     meta.Metadata,
		LastModified: meta.CreatedAt,
	}
}

func (s *FSStore) readMeta(dataPath string) (fsMeta, error) {
	var meta fsMeta

	raw, err := os.ReadFile(dataPath + metaSuffix)
	if err != nil {
		return meta, err
	}

	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, fmt.Errorf("failed to decode metadata: %w", err)
	}

	return meta, nil
}

func (s *FSStore) Get(_ context.Context, key string) (Info, io.ReadCloser, error) {
	dataPath, err := s.pathFor(key)
	if err != nil {
		return Info{}, nil, err
	}

	file, err := os.Open(dataPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}

		return Info{}, nil, fmt.Errorf("failed to open object: %w", err)
	}

	meta, err := s.readMeta(dataPath)
	if err != nil {
		_ = file.Close()
		return Info{}, nil, err
	}

	return s.info(key, meta), file, nil
}

func (s *FSStore) List(_ context.Context, prefix string) ([]Info, error) {
	var infos []Info

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || strings.HasSuffix(p, metaSuffix) || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}

		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		meta, err := s.readMeta(p)
		if err != nil {
			return err
		}

		infos = append(infos, s.info(key, meta))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })

	return infos, nil
}
