package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/tidwall/jsonc"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/toolguard/internal/logging"
	"github.com/opencode-ai/toolguard/pkg/types"
)

// ParseError reports a settings file that exists but could not be read or
// decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("settings file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Source describes the outcome of loading one settings file.
type Source struct {
	Path   string
	Loaded bool
	Err    error // nil when the file is missing or loaded
}

// Loader loads the user, project and project-local settings of one project.
type Loader struct {
	projectDir string
}

// NewLoader creates a loader for projectDir.
func NewLoader(projectDir string) *Loader {
	return &Loader{projectDir: projectDir}
}

// Load merges the user, project and project-local settings of projectDir.
// Missing files are skipped; malformed files are logged and skipped.
func Load(projectDir string) *types.Settings {
	return NewLoader(projectDir).Load()
}

// ProjectDir returns the project directory.
func (l *Loader) ProjectDir() string {
	return l.projectDir
}

// Paths returns the settings locations of the project.
func (l *Loader) Paths() *Paths {
	return GetPaths(l.projectDir)
}

// Load runs a full load. It never fails.
func (l *Loader) Load() *types.Settings {
	settings, _ := l.LoadWithSources()
	return settings
}

// Reload runs a full load again.
func (l *Loader) Reload() *types.Settings {
	return l.Load()
}

// LoadWithSources runs a full load and reports what happened to each file.
func (l *Loader) LoadWithSources() (*types.Settings, []Source) {
	settings := &types.Settings{}
	paths := l.Paths().Sources()
	sources := make([]Source, 0, len(paths))

	for _, path := range paths {
		src := Source{Path: path}
		fileSettings, err := LoadFile(path)
		switch {
		case err == nil:
			settings.Merge(fileSettings)
			src.Loaded = true
			log().Debug().Str("path", path).Msg("loaded settings")
		case errors.Is(err, fs.ErrNotExist):
			log().Debug().Str("path", path).Msg("settings file not found")
		default:
			src.Err = err
			log().Warn().Err(err).Str("path", path).Msg("skipping malformed settings file")
		}
		sources = append(sources, src)
	}

	return settings, sources
}

// LoadFile reads one settings file. Comments and trailing commas are
// accepted. A missing file yields an error matching fs.ErrNotExist; any other
// failure is a *ParseError.
func LoadFile(path string) (*types.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, &ParseError{Path: path, Err: err}
	}
	return ParseSettings(path, data)
}

// ParseSettings decodes settings from data. path is used in errors only.
func ParseSettings(path string, data []byte) (*types.Settings, error) {
	data = jsonc.ToJSON(data)

	var settings types.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &settings, nil
}

func log() *zerolog.Logger {
	return logging.Component("settings")
}
