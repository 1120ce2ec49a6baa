package photo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store reads the photos directory.
type Store struct {
	dir string
}

func NewStore(photosDir string) *Store {
	return &Store{dir: photosDir}
}

// Dir returns the photos directory.
func (s *Store) Dir() string { return s.dir }

// Latest returns the web paths of the newest n photos, newest first.
// n <= 0 returns all of them.
func (s *Store) Latest(n int) ([]string, error) {
	names, err := listPhotos(s.dir)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if n > 0 && len(names) > n {
		names = names[:n]
	}
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = WebPrefix + name
	}
	return paths, nil
}

// WebToLocal maps "photos/<name>" or "photos/tmp/<name>" onto the photos
// directory. Paths escaping the directory are rejected.
func (s *Store) WebToLocal(webPath string) (string, error) {
	rel, ok := strings.CutPrefix(strings.TrimPrefix(webPath, "/"), WebPrefix)
	if !ok || rel == "" {
		return "", fmt.Errorf("not a photo path: %q", webPath)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid photo path: %q", webPath)
	}
	return filepath.Join(s.dir, clean), nil
}

// listPhotos returns the img_*.jpg file names in dir, sorted ascending.
// A missing directory is empty.
func listPhotos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "img_") || !strings.HasSuffix(name, ".jpg") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
