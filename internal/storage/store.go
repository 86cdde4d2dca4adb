package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

var (
	// ErrNotFound indicates the requested (collection, name) pair is absent.
	ErrNotFound = errors.New("file not found")
	// ErrMediumUnavailable indicates the storage medium is not mounted or
	// has disappeared; every operation degrades to this error.
	ErrMediumUnavailable = errors.New("storage medium unavailable")
	// ErrBadName indicates a file name that would escape its collection.
	ErrBadName = errors.New("invalid file name")
)

// Store provides access to the file collections under a single data root.
type Store struct {
	root string
}

// New constructs a store rooted at dataDir. The medium is probed lazily: a
// missing root surfaces as ErrMediumUnavailable on first use, not here.
func New(dataDir string) *Store {
	return &Store{root: filepath.Clean(dataDir)}
}

// Root returns the data root directory.
func (s *Store) Root() string {
	return s.root
}

// EnsureCollections creates the collection directories under the data root.
func (s *Store) EnsureCollections() error {
	if err := s.Probe(); err != nil {
		return err
	}
	for _, collection := range allCollections {
		if err := os.MkdirAll(s.dir(collection), 0o755); err != nil {
			return fmt.Errorf("create collection %s: %w", collection, err)
		}
	}
	return nil
}

// Probe verifies the storage medium is mounted and writable metadata can be
// read. Used by the link monitor and as the degradation check for every file
// operation.
func (s *Store) Probe() error {
	var stat unix.Statfs_t
	if err := unix.Statfs(s.root, &stat); err != nil {
		return fmt.Errorf("%w: %s", ErrMediumUnavailable, s.root)
	}
	info, err := os.Stat(s.root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrMediumUnavailable, s.root)
	}
	return nil
}

// List enumerates the entries of a collection, sorted by name.
func (s *Store) List(collection Collection) ([]StoredFile, error) {
	if err := s.Probe(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir(collection))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []StoredFile{}, nil
		}
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	files := make([]StoredFile, 0, len(entries))
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), partialSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, StoredFile{
			Name:        entry.Name(),
			SizeBytes:   info.Size(),
			IsDirectory: entry.IsDir(),
			Collection:  collection,
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// OpenRead opens a stored file for reading.
func (s *Store) OpenRead(collection Collection, name string) (io.ReadCloser, error) {
	path, err := s.path(collection, name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, name)
		}
		return nil, fmt.Errorf("open %s/%s: %w", collection, name, err)
	}
	return file, nil
}

// Create opens a stored file for writing, truncating any existing content.
// The collection directory is created if the medium is present.
func (s *Store) Create(collection Collection, name string) (io.WriteCloser, error) {
	path, err := s.path(collection, name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", collection, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s/%s: %w", collection, name, err)
	}
	return file, nil
}

// Stat returns the entry for a single stored file.
func (s *Store) Stat(collection Collection, name string) (StoredFile, error) {
	path, err := s.path(collection, name)
	if err != nil {
		return StoredFile{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return StoredFile{}, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, name)
		}
		return StoredFile{}, fmt.Errorf("stat %s/%s: %w", collection, name, err)
	}
	return StoredFile{
		Name:        filepath.Base(path),
		SizeBytes:   info.Size(),
		IsDirectory: info.IsDir(),
		Collection:  collection,
	}, nil
}

// Delete removes a stored file.
func (s *Store) Delete(collection Collection, name string) error {
	path, err := s.path(collection, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, name)
		}
		return fmt.Errorf("delete %s/%s: %w", collection, name, err)
	}
	return nil
}

func (s *Store) dir(collection Collection) string {
	return filepath.Join(s.root, string(collection))
}

// path builds the on-medium path for a (collection, name) pair. Names are
// reduced to their base so callers can never escape the collection root.
func (s *Store) path(collection Collection, name string) (string, error) {
	if err := s.Probe(); err != nil {
		return "", err
	}
	cleaned := filepath.Base(strings.TrimSpace(name))
	if cleaned == "" || cleaned == "." || cleaned == ".." || cleaned == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return filepath.Join(s.dir(collection), cleaned), nil
}
