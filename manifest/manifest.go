// Package manifest handles lambdastring.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/chazu/lambdastring/forward"
	"github.com/chazu/lambdastring/lambdameta"
)

// FileName is the name of the configuration file.
const FileName = "lambdastring.toml"

// ClasspathEnv holds extra classpath entries, separated by the OS path list
// separator. They are searched before the configured ones.
const ClasspathEnv = "LAMBDASTRING_CLASSPATH"

// Manifest represents a lambdastring.toml configuration.
type Manifest struct {
	Classpath Classpath     `toml:"classpath"`
	Forward   ForwardConfig `toml:"forward"`
	Log       LogConfig     `toml:"log"`

	// Dir is the directory containing the lambdastring.toml file (set at load time).
	Dir string `toml:"-"`
}

// Classpath lists where class files are looked up, searched in the order
// dirs, jars, databases.
type Classpath struct {
	Dirs      []string `toml:"dirs"`
	Jars      []string `toml:"jars"`
	Databases []string `toml:"databases"`
}

// ForwardConfig configures generated forwarding code.
type ForwardConfig struct {
	ToolkitPackage string `toml:"toolkit-package"`
	LabelSlot      int    `toml:"label-slot"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no file is found.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Forward.ToolkitPackage == "" {
		m.Forward.ToolkitPackage = forward.DefaultToolkitPackage
	}
	if m.Forward.LabelSlot == 0 {
		m.Forward.LabelSlot = forward.DefaultLabelSlot
	}
}

// Load parses a lambdastring.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if m.Forward.LabelSlot < 0 {
		return nil, fmt.Errorf("%s: forward.label-slot must not be negative", path)
	}
	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a lambdastring.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// resolve makes a configured path absolute relative to the manifest.
func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// ForwardOptions returns the emitter options configured in [forward].
func (m *Manifest) ForwardOptions() []forward.Option {
	return []forward.Option{
		forward.WithToolkitPackage(m.Forward.ToolkitPackage),
		forward.WithLabelSlot(m.Forward.LabelSlot),
	}
}

// EnvClasspath splits the value of LAMBDASTRING_CLASSPATH into a Classpath.
// Entries ending in .jar are archives, entries ending in .db or .sqlite are
// databases, and everything else is a directory.
func EnvClasspath() Classpath {
	var cp Classpath
	for _, entry := range filepath.SplitList(os.Getenv(ClasspathEnv)) {
		switch {
		case entry == "":
		case strings.HasSuffix(entry, ".jar"):
			cp.Jars = append(cp.Jars, entry)
		case strings.HasSuffix(entry, ".db"), strings.HasSuffix(entry, ".sqlite"):
			cp.Databases = append(cp.Databases, entry)
		default:
			cp.Dirs = append(cp.Dirs, entry)
		}
	}
	return cp
}

// BuildLocator opens every classpath entry, environment entries first. The
// caller closes the returned chain.
func (m *Manifest) BuildLocator() (lambdameta.ChainLocator, error) {
	var chain lambdameta.ChainLocator
	fail := func(err error) (lambdameta.ChainLocator, error) {
		chain.Close()
		return nil, err
	}

	add := func(cp Classpath, resolve func(string) string) error {
		for _, d := range cp.Dirs {
			chain = append(chain, lambdameta.DirLocator(resolve(d)))
		}
		for _, j := range cp.Jars {
			jar, err := lambdameta.OpenJar(resolve(j))
			if err != nil {
				return err
			}
			chain = append(chain, jar)
		}
		for _, d := range cp.Databases {
			db, err := lambdameta.OpenSQLite(resolve(d))
			if err != nil {
				return fmt.Errorf("class database %s: %w", d, err)
			}
			chain = append(chain, db)
		}
		return nil
	}

	if err := add(EnvClasspath(), func(p string) string { return p }); err != nil {
		return fail(err)
	}
	if err := add(m.Classpath, m.resolve); err != nil {
		return fail(err)
	}
	return chain, nil
}

// ConfigureLogging applies [log] to the commonlog backend. A relative log
// file is resolved against the manifest directory.
func (m *Manifest) ConfigureLogging() {
	if m.Log.File == "" {
		commonlog.Configure(m.Log.Verbosity, nil)
		return
	}
	path := m.resolve(m.Log.File)
	commonlog.Configure(m.Log.Verbosity, &path)
}
