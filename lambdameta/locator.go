package lambdameta

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
)

// ResourceName converts a binary type name such as "com.example.Holder" to
// the resource holding its class file, "com/example/Holder.class".
func ResourceName(typeName string) string {
	return strings.ReplaceAll(typeName, ".", "/") + ".class"
}

// ResourceLocator opens class resources by name. Open returns an error
// matching ErrResourceNotFound when the resource does not exist.
type ResourceLocator interface {
	Open(name string) (io.ReadCloser, error)
}

// ---------------------------------------------------------------------------
// Directory and file-system locators
// ---------------------------------------------------------------------------

// FSLocator serves resources from a file system, such as a classes
// directory or an embedded tree.
type FSLocator struct {
	FS fs.FS
}

// DirLocator serves resources from a directory on disk.
func DirLocator(dir string) FSLocator {
	return FSLocator{FS: os.DirFS(dir)}
}

func (l FSLocator) Open(name string) (io.ReadCloser, error) {
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("%w: invalid resource name %q", ErrResourceNotFound, name)
	}
	f, err := l.FS.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, name)
		}
		return nil, err
	}
	return f, nil
}

// ---------------------------------------------------------------------------
// Archive locator
// ---------------------------------------------------------------------------

// JarLocator serves resources from a jar archive.
type JarLocator struct {
	path string
	zr   *zip.ReadCloser
}

// OpenJar opens a jar file. Close releases it.
func OpenJar(path string) (*JarLocator, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening jar %s: %w", path, err)
	}
	return &JarLocator{path: path, zr: zr}, nil
}

func (l *JarLocator) Open(name string) (io.ReadCloser, error) {
	rc, err := l.zr.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s in %s", ErrResourceNotFound, name, l.path)
		}
		return nil, fmt.Errorf("reading %s from %s: %w", name, l.path, err)
	}
	return rc, nil
}

// Close closes the archive.
func (l *JarLocator) Close() error {
	return l.zr.Close()
}

// ---------------------------------------------------------------------------
// Chained locator
// ---------------------------------------------------------------------------

// ChainLocator tries each locator in order and returns the first resource
// found. Errors other than not-found stop the search.
type ChainLocator []ResourceLocator

func (c ChainLocator) Open(name string) (io.ReadCloser, error) {
	for _, l := range c {
		rc, err := l.Open(name)
		if err == nil {
			return rc, nil
		}
		if !errors.Is(err, ErrResourceNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, name)
}

// Close closes every locator in the chain that can be closed.
func (c ChainLocator) Close() error {
	var errs []error
	for _, l := range c {
		if closer, ok := l.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Process default
// ---------------------------------------------------------------------------

var (
	defaultMu      sync.RWMutex
	defaultLocator ResourceLocator = ChainLocator{}
)

// DefaultLocator returns the locator used by types without one. It finds
// nothing until SetDefaultLocator is called.
func DefaultLocator() ResourceLocator {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLocator
}

// SetDefaultLocator replaces the process-wide fallback locator. A nil
// locator restores the empty default.
func SetDefaultLocator(l ResourceLocator) {
	if l == nil {
		l = ChainLocator{}
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLocator = l
}
