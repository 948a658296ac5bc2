package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vango-dev/vdiff/pkg/vdom"
)

// DiskStore stores snapshots as YAML files in one directory.
type DiskStore struct {
	dir string
	mu  sync.RWMutex
}

// NewDiskStore creates a DiskStore, creating dir if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, storageError("create directory", dir, err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the directory snapshots are written to.
func (s *DiskStore) Dir() string {
	return s.dir
}

func (s *DiskStore) path(name string) string {
	return filepath.Join(s.dir, name+Extension)
}

// Save writes the snapshot to a temp file and renames it into place.
func (s *DiskStore) Save(ctx context.Context, name string, node *vdom.VNode) error {
	if err := CheckName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(name, node)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.CreateTemp(s.dir, "."+name+"-*.tmp")
	if err != nil {
		return storageError("save", name, err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return storageError("save", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return storageError("save", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return storageError("save", name, err)
	}
	if err := os.Rename(tmp, s.path(name)); err != nil {
		os.Remove(tmp)
		return storageError("save", name, err)
	}
	return nil
}

// Load reads the snapshot stored under name.
func (s *DiskStore) Load(ctx context.Context, name string) (*vdom.VNode, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, err := os.ReadFile(s.path(name))
	s.mu.RUnlock()
	if os.IsNotExist(err) {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, storageError("load", name, err)
	}
	return decode(name, data)
}

// Delete removes the snapshot file.
func (s *DiskStore) Delete(ctx context.Context, name string) error {
	if err := CheckName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(name))
	if os.IsNotExist(err) {
		return notFound(name)
	}
	if err != nil {
		return storageError("delete", name, err)
	}
	return nil
}

// List returns the snapshots in the directory. Temp files and files that
// are not valid snapshot names are skipped.
func (s *DiskStore) List(ctx context.Context) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	entries, err := os.ReadDir(s.dir)
	s.mu.RUnlock()
	if err != nil {
		return nil, storageError("list", s.dir, err)
	}

	var infos []Info
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(entry.Name(), Extension)
		if !ok || CheckName(name) != nil {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{Name: name, Size: fi.Size(), Modified: fi.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}
