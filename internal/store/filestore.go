package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the whole document map in one pretty-printed JSON file.
// Every operation reads and rewrites the file under a mutex; writes go
// through a temp file and rename so a crash never leaves a torn file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore opens (or creates) the JSON file at path.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage dir: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
			return nil, fmt.Errorf("storage init: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

// readData loads the document map. An empty or unreadable file degrades to
// an empty map rather than failing the request.
func (fs *FileStore) readData() map[string]json.RawMessage {
	docs := map[string]json.RawMessage{}
	data, err := os.ReadFile(fs.path)
	if err != nil {
		slog.Warn("filestore: read failed", slog.String("path", fs.path), slog.Any("err", err))
		return docs
	}
	if len(data) == 0 {
		return docs
	}
	if err := json.Unmarshal(data, &docs); err != nil {
		slog.Warn("filestore: corrupt storage file, starting empty", slog.String("path", fs.path), slog.Any("err", err))
		return map[string]json.RawMessage{}
	}
	return docs
}

func (fs *FileStore) writeData(docs map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("storage write: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("storage rename: %w", err)
	}
	return nil
}

func (fs *FileStore) Get(_ context.Context, key string) (json.RawMessage, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	value, ok := fs.readData()[key]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

func (fs *FileStore) Set(_ context.Context, key string, value json.RawMessage) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	docs := fs.readData()
	docs[key] = value
	return fs.writeData(docs)
}

func (fs *FileStore) AppendArray(_ context.Context, key string, element json.RawMessage) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	docs := fs.readData()
	docs[key] = appendToArray(docs[key], element)
	return fs.writeData(docs)
}

func (fs *FileStore) AppendMap(_ context.Context, key, field string, value json.RawMessage) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	docs := fs.readData()
	docs[key] = appendToMap(docs[key], field, value)
	return fs.writeData(docs)
}

func (fs *FileStore) Remove(_ context.Context, key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	docs := fs.readData()
	if _, ok := docs[key]; !ok {
		return nil
	}
	delete(docs, key)
	return fs.writeData(docs)
}

func (fs *FileStore) Close() error { return nil }
