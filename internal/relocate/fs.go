package relocate

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/gobwas/glob"

	"github.com/cta-lst/dl1merge/internal/errors"
)

// EnsureDir creates path and its parents if needed. Existing content is
// left untouched.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	return nil
}

// MoveDirContent moves every direct child of src into dest, then removes
// the emptied src. dest may already hold other entries; child names are
// expected not to collide with them. Moves across filesystems fall back to
// copy and delete.
func MoveDirContent(src, dest string) (int, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return 0, errors.Wrapf(err, "listing %s", src)
	}

	moved := 0
	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dest, e.Name())
		if err := move(from, to); err != nil {
			return moved, errors.Wrapf(err, "moving %s to %s", from, dest)
		}
		moved++
	}

	if err := os.Remove(src); err != nil {
		return moved, errors.Wrapf(err, "removing %s", src)
	}
	return moved, nil
}

func move(from, to string) error {
	err := os.Rename(from, to)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyTree(from, to); err != nil {
		return err
	}
	return os.RemoveAll(from)
}

func copyTree(from, to string) error {
	return filepath.WalkDir(from, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, path)
		if err != nil {
			return err
		}
		target := filepath.Join(to, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CopyConfigFiles copies the regular files directly under srcDir whose
// names match one of patterns into dest. It returns the copied names.
func CopyConfigFiles(srcDir, dest string, patterns []string) ([]string, error) {
	matchers := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.NewValidationError("invalid config pattern").WithField("relocate.config_patterns").WithValue(p)
		}
		matchers = append(matchers, g)
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", srcDir)
	}

	var copied []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !matchAny(matchers, e.Name()) {
			continue
		}
		if err := copyFile(filepath.Join(srcDir, e.Name()), filepath.Join(dest, e.Name()), 0644); err != nil {
			return copied, errors.Wrapf(err, "copying %s", e.Name())
		}
		copied = append(copied, e.Name())
	}
	return copied, nil
}

func matchAny(matchers []glob.Glob, name string) bool {
	for _, g := range matchers {
		if g.Match(name) {
			return true
		}
	}
	return false
}
