package lambdameta

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func readAll(t *testing.T, l ResourceLocator, name string) []byte {
	t.Helper()
	rc, err := l.Open(name)
	if err != nil {
		t.Fatalf("Open(%s): %v", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	return data
}

func writeJar(t *testing.T, path string, files map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

// TestLocatorsAgree stores the same class in every kind of locator and
// checks they serve identical bytes and report missing resources alike.
func TestLocatorsAgree(t *testing.T) {
	const name = "com/example/Holder.class"
	data := holderClass(t, 42)
	dir := t.TempDir()

	classes := filepath.Join(dir, "classes", "com", "example")
	if err := os.MkdirAll(classes, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(classes, "Holder.class"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	jarPath := filepath.Join(dir, "app.jar")
	writeJar(t, jarPath, map[string][]byte{name: data})
	jar, err := OpenJar(jarPath)
	if err != nil {
		t.Fatalf("OpenJar: %v", err)
	}
	defer jar.Close()

	db, err := OpenSQLite(filepath.Join(dir, "classes.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer db.Close()
	if err := db.Put(name, data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	locators := map[string]ResourceLocator{
		"dir":    DirLocator(filepath.Join(dir, "classes")),
		"fs":     FSLocator{FS: fstest.MapFS{name: {Data: data}}},
		"jar":    jar,
		"sqlite": db,
		"chain":  ChainLocator{FSLocator{FS: fstest.MapFS{}}, db},
	}
	for kind, l := range locators {
		t.Run(kind, func(t *testing.T) {
			if got := readAll(t, l, name); !bytes.Equal(got, data) {
				t.Errorf("Open returned %d bytes, want %d", len(got), len(data))
			}
			if _, err := l.Open("com/example/Missing.class"); !errors.Is(err, ErrResourceNotFound) {
				t.Errorf("Open(missing) error = %v, want ErrResourceNotFound", err)
			}

			md := newHolderMetadata(t, l)
			line, ok, err := md.DeclarationLine()
			if err != nil || !ok || line != 42 {
				t.Errorf("DeclarationLine = (%d, %v, %v), want (42, true, nil)", line, ok, err)
			}
		})
	}
}

func TestSQLiteLocatorDelete(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "classes.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer db.Close()

	if err := db.Put("A.class", []byte{1}); err != nil {
		t.Fatal(err)
	}
	if err := db.Put("A.class", []byte{2}); err != nil {
		t.Fatal(err)
	}
	if got := readAll(t, db, "A.class"); !bytes.Equal(got, []byte{2}) {
		t.Errorf("after replace = %v, want [2]", got)
	}
	if err := db.Delete("A.class"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Open("A.class"); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("Open after Delete error = %v, want ErrResourceNotFound", err)
	}
}

type failingLocator struct{ err error }

func (l failingLocator) Open(string) (io.ReadCloser, error) { return nil, l.err }

func TestChainLocatorStopsOnError(t *testing.T) {
	boom := errors.New("disk on fire")
	chain := ChainLocator{
		failingLocator{err: ErrResourceNotFound},
		failingLocator{err: boom},
		FSLocator{FS: fstest.MapFS{"A.class": {Data: []byte{1}}}},
	}
	if _, err := chain.Open("A.class"); !errors.Is(err, boom) {
		t.Errorf("Open error = %v, want %v", err, boom)
	}
}

func TestFSLocatorRejectsInvalidNames(t *testing.T) {
	l := FSLocator{FS: fstest.MapFS{}}
	if _, err := l.Open("../escape.class"); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("Open(../escape.class) error = %v, want ErrResourceNotFound", err)
	}
}
