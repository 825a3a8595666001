// Package deliver implements the file-delivery collaborator: finished
// export files are placed in a downloads directory where the user picks
// them up. It is the desktop equivalent of triggering a browser download.
package deliver

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Downloads writes delivered files into a fixed directory.
type Downloads struct {
	root string
}

// New returns a Downloads delivery rooted at dir, creating it if needed.
func New(root string) (*Downloads, error) {
	if root == "" {
		return nil, errors.New("download directory must not be empty")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, err
	}
	return &Downloads{root: root}, nil
}

// Deliver writes data under the suggested filename. The mime argument is
// accepted for interface symmetry; the filename's extension carries the
// type on disk.
func (d *Downloads) Deliver(filename, _ string, data []byte) error {
	name := sanitize(filename)
	if name == "" {
		name = "fil"
	}
	p := filepath.Join(d.root, name)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err = f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(p)
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Dir returns the delivery directory.
func (d *Downloads) Dir() string { return d.root }

// sanitize strips path separators so a suggested filename can never
// escape the download directory.
func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}
