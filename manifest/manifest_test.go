package manifest

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/lambdastring/forward"
	"github.com/chazu/lambdastring/lambdameta"
)

func TestLoadManifest(t *testing.T) {
	// Create a temporary directory with a lambdastring.toml
	dir := t.TempDir()
	tomlContent := `
[classpath]
dirs = ["build/classes"]
jars = ["lib/app.jar"]
databases = ["classes.db"]

[forward]
toolkit-package = "jdk/internal/org/objectweb/asm"
label-slot = 4

[log]
verbosity = 2
file = "lambdastring.log"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := Classpath{
		Dirs:      []string{"build/classes"},
		Jars:      []string{"lib/app.jar"},
		Databases: []string{"classes.db"},
	}
	if diff := cmp.Diff(want, m.Classpath); diff != "" {
		t.Errorf("classpath mismatch (-want +got):\n%s", diff)
	}
	if m.Forward.ToolkitPackage != "jdk/internal/org/objectweb/asm" {
		t.Errorf("toolkit package = %q, want jdk/internal/org/objectweb/asm", m.Forward.ToolkitPackage)
	}
	if m.Forward.LabelSlot != 4 {
		t.Errorf("label slot = %d, want 4", m.Forward.LabelSlot)
	}
	if m.Log.Verbosity != 2 || m.Log.File != "lambdastring.log" {
		t.Errorf("log = %+v, want verbosity 2 file lambdastring.log", m.Log)
	}
	absDir, _ := filepath.Abs(dir)
	if m.Dir != absDir {
		t.Errorf("dir = %q, want %q", m.Dir, absDir)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), nil, 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Forward.ToolkitPackage != forward.DefaultToolkitPackage {
		t.Errorf("toolkit package = %q, want %q", m.Forward.ToolkitPackage, forward.DefaultToolkitPackage)
	}
	if m.Forward.LabelSlot != forward.DefaultLabelSlot {
		t.Errorf("label slot = %d, want %d", m.Forward.LabelSlot, forward.DefaultLabelSlot)
	}
	if len(m.ForwardOptions()) != 2 {
		t.Errorf("ForwardOptions returned %d options, want 2", len(m.ForwardOptions()))
	}
}

func TestLoadRejectsNegativeLabelSlot(t *testing.T) {
	dir := t.TempDir()
	content := "[forward]\nlabel-slot = -1\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("Load with a negative label slot should fail")
	}
}

func TestLoadParseError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("[classpath\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("Load of invalid TOML should fail")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("[log]\nverbosity = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil, want manifest from root")
	}
	if m.Log.Verbosity != 1 {
		t.Errorf("verbosity = %d, want 1", m.Log.Verbosity)
	}
}

func TestFindAndLoadNone(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	// A lambdastring.toml above the temp dir would be found; only check the type.
	if m != nil && m.Dir == "" {
		t.Error("found manifest without a directory")
	}
}

func TestEnvClasspath(t *testing.T) {
	sep := string(os.PathListSeparator)
	t.Setenv(ClasspathEnv, "classes"+sep+"app.jar"+sep+sep+"store.db"+sep+"more.sqlite")

	want := Classpath{
		Dirs:      []string{"classes"},
		Jars:      []string{"app.jar"},
		Databases: []string{"store.db", "more.sqlite"},
	}
	if diff := cmp.Diff(want, EnvClasspath()); diff != "" {
		t.Errorf("EnvClasspath mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildLocator(t *testing.T) {
	t.Setenv(ClasspathEnv, "")
	dir := t.TempDir()
	classes := filepath.Join(dir, "classes")
	if err := os.MkdirAll(filepath.Join(classes, "p"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(classes, "p", "A.class"), []byte("dir"), 0644); err != nil {
		t.Fatal(err)
	}

	db, err := lambdameta.OpenSQLite(filepath.Join(dir, "classes.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Put("p/B.class", []byte("db")); err != nil {
		t.Fatal(err)
	}
	db.Close()

	m := &Manifest{
		Dir:       dir,
		Classpath: Classpath{Dirs: []string{"classes"}, Databases: []string{"classes.db"}},
	}
	chain, err := m.BuildLocator()
	if err != nil {
		t.Fatalf("BuildLocator: %v", err)
	}
	defer chain.Close()

	for name, want := range map[string]string{"p/A.class": "dir", "p/B.class": "db"} {
		rc, err := chain.Open(name)
		if err != nil {
			t.Fatalf("Open(%s): %v", name, err)
		}
		got, _ := io.ReadAll(rc)
		rc.Close()
		if string(got) != want {
			t.Errorf("Open(%s) = %q, want %q", name, got, want)
		}
	}
	if _, err := chain.Open("p/C.class"); !errors.Is(err, lambdameta.ErrResourceNotFound) {
		t.Errorf("Open(missing) error = %v, want ErrResourceNotFound", err)
	}
}

func TestBuildLocatorMissingJar(t *testing.T) {
	t.Setenv(ClasspathEnv, "")
	m := &Manifest{Dir: t.TempDir(), Classpath: Classpath{Jars: []string{"missing.jar"}}}
	if _, err := m.BuildLocator(); err == nil {
		t.Error("BuildLocator with a missing jar should fail")
	}
}
