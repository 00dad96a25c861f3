package preference

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/kbukum/bizbackend/backend"
)

// FileStore keeps the kind as KEY=value in a dotenv file. Other keys in
// the file are preserved on write.
type FileStore struct {
	path string
	key  string
	mu   sync.Mutex
}

// NewFileStore creates a store writing key into path.
func NewFileStore(path, key string) *FileStore {
	if key == "" {
		key = DefaultKey
	}
	return &FileStore{path: path, key: key}
}

// Load reads the kind. A missing file means nothing is stored.
func (s *FileStore) Load(context.Context) (backend.Kind, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.read()
	if err != nil {
		return "", false, err
	}
	v := strings.TrimSpace(env[s.key])
	if v == "" {
		return "", false, nil
	}
	return backend.Kind(v), true, nil
}

// Save writes the kind through a temp file and rename.
func (s *FileStore) Save(_ context.Context, kind backend.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.read()
	if err != nil {
		return err
	}
	env[s.key] = kind.String()

	content, err := godotenv.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding preference file: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating preference dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".preference-*")
	if err != nil {
		return fmt.Errorf("creating temp preference file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(content + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("writing preference file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing preference file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing preference file: %w", err)
	}
	return nil
}

func (s *FileStore) read() (map[string]string, error) {
	env, err := godotenv.Read(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading preference file %s: %w", s.path, err)
	}
	return env, nil
}
