package repo

import (
	"fmt"
	"io"
	"path"

	"github.com/go-git/go-billy/v5"
)

// writeFileAtomic writes data to a temp file in the target's directory and
// renames it into place.
func writeFileAtomic(fs billy.Filesystem, name string, data []byte) error {
	dir := path.Dir(name)
	if dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("write %s: mkdir: %w", name, err)
		}
	}
	tmp, err := fs.TempFile(dir, "."+path.Base(name)+"-tmp-")
	if err != nil {
		return fmt.Errorf("write %s: tmpfile: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("write %s: close: %w", name, err)
	}
	if err := fs.Rename(tmpName, name); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("write %s: rename: %w", name, err)
	}
	return nil
}

func readFile(fs billy.Filesystem, name string) ([]byte, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
