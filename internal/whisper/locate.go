package whisper

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/apperr"
)

// BinaryNames are the executable names whisper.cpp has shipped under.
var BinaryNames = []string{"whisper-cli", "whisper", "main"}

// InstallDirs are checked when nothing is found on PATH.
var InstallDirs = []string{"/usr/local/bin", "/usr/bin", "/opt/whisper/bin"}

// DefaultWhisperCppDir is the in-repo checkout used for build output lookup.
const DefaultWhisperCppDir = "third_party/whisper.cpp"

// Locator finds the whisper.cpp executable. Strategies run in order and the
// first hit wins: the explicit path, PATH lookup, install directories, then
// the build output of a whisper.cpp checkout.
type Locator struct {
	Explicit string
	Names    []string
	Dirs     []string
	BuildDir string

	// LookPath defaults to exec.LookPath.
	LookPath func(string) (string, error)
}

// NewLocator returns a Locator with the default search lists.
func NewLocator(explicit, buildDir string) *Locator {
	if buildDir == "" {
		buildDir = DefaultWhisperCppDir
	}
	return &Locator{
		Explicit: explicit,
		Names:    BinaryNames,
		Dirs:     InstallDirs,
		BuildDir: buildDir,
		LookPath: exec.LookPath,
	}
}

type locateStep func(tried *[]string) (string, bool)

// Locate returns the first executable found. When every strategy misses,
// the error lists each location tried.
func (l *Locator) Locate() (string, error) {
	var tried []string
	for _, step := range []locateStep{l.explicit, l.searchPath, l.installDirs, l.buildOutput} {
		if path, ok := step(&tried); ok {
			log.Debug().Str("bin", path).Msg("whisper: located engine binary")
			return path, nil
		}
	}
	return "", apperr.Initialization("whisper.cpp binary not found; tried %s", strings.Join(tried, ", "))
}

func (l *Locator) explicit(tried *[]string) (string, bool) {
	if l.Explicit == "" {
		return "", false
	}
	return probe(l.Explicit, tried)
}

func (l *Locator) searchPath(tried *[]string) (string, bool) {
	lookPath := l.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for _, name := range l.Names {
		*tried = append(*tried, "$PATH/"+name)
		if path, err := lookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}

func (l *Locator) installDirs(tried *[]string) (string, bool) {
	for _, dir := range l.Dirs {
		for _, name := range l.Names {
			if path, ok := probe(filepath.Join(dir, name), tried); ok {
				return path, true
			}
		}
	}
	return "", false
}

func (l *Locator) buildOutput(tried *[]string) (string, bool) {
	if l.BuildDir == "" {
		return "", false
	}
	for _, rel := range []string{"build/bin/whisper-cli", "build/bin/main", "build/main", "build/whisper"} {
		if path, ok := probe(filepath.Join(l.BuildDir, rel), tried); ok {
			return path, true
		}
	}
	return "", false
}

// probe records path as tried and reports whether it is an executable file.
func probe(path string, tried *[]string) (string, bool) {
	*tried = append(*tried, path)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Mode()&0o111 == 0 {
		return "", false
	}
	return path, true
}
