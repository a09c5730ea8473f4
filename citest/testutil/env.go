package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/opencode-ai/toolguard/internal/config"
)

// EnvDebounce overrides the watcher debounce used by suites.
const EnvDebounce = "TOOLGUARD_TEST_DEBOUNCE"

const defaultDebounce = 50 * time.Millisecond

// TestEnv is an isolated home and project directory pair. Creating one
// points HOME at the temporary home; Cleanup restores it.
type TestEnv struct {
	Home    string
	Project string
	Paths   *config.Paths

	prevHome      string
	prevConfigDir string
	hadConfigDir  bool
}

// TestEnvOption configures TestEnv
type TestEnvOption func(*testEnvConfig)

type testEnvConfig struct {
	envFile string
}

// WithEnvFile sets the .env file to load
func WithEnvFile(path string) TestEnvOption {
	return func(c *testEnvConfig) {
		c.envFile = path
	}
}

// NewTestEnv creates the directories and switches HOME.
func NewTestEnv(opts ...TestEnvOption) (*TestEnv, error) {
	cfg := &testEnvConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.envFile != "" {
		_ = godotenv.Load(cfg.envFile)
	} else {
		_ = godotenv.Load("../../.env")
		_ = godotenv.Load(".env")
	}

	root, err := os.MkdirTemp("", "toolguard-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	// macOS temp dirs are reached through a symlink
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	env := &TestEnv{
		Home:     filepath.Join(root, "home"),
		Project:  filepath.Join(root, "project"),
		prevHome: os.Getenv("HOME"),
	}
	env.prevConfigDir, env.hadConfigDir = os.LookupEnv(config.EnvConfigDir)

	for _, dir := range []string{
		filepath.Join(env.Home, config.SettingsDirName),
		filepath.Join(env.Project, config.SettingsDirName),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			os.RemoveAll(root)
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	os.Setenv("HOME", env.Home)
	os.Unsetenv(config.EnvConfigDir)
	env.Paths = config.GetPaths(env.Project)
	return env, nil
}

// WriteUser replaces the user settings file.
func (e *TestEnv) WriteUser(content string) error {
	return writeAtomic(e.Paths.User, content)
}

// WriteProject replaces the project settings file.
func (e *TestEnv) WriteProject(content string) error {
	return writeAtomic(e.Paths.Project, content)
}

// WriteLocal replaces the local project settings file.
func (e *TestEnv) WriteLocal(content string) error {
	return writeAtomic(e.Paths.ProjectLocal, content)
}

// Debounce returns the watcher delay for suites, honouring EnvDebounce.
func (e *TestEnv) Debounce() time.Duration {
	if v := os.Getenv(EnvDebounce); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultDebounce
}

// Cleanup removes the directories and restores the environment.
func (e *TestEnv) Cleanup() {
	os.Setenv("HOME", e.prevHome)
	if e.hadConfigDir {
		os.Setenv(config.EnvConfigDir, e.prevConfigDir)
	}
	os.RemoveAll(filepath.Dir(e.Home))
}

// writeAtomic renames a complete temporary file over path so watchers
// never observe a partial write.
func writeAtomic(path, content string) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+RandomString(6))
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
