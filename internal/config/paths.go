package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigDir overrides the user settings directory.
	EnvConfigDir = "CLAUDE_CONFIG_DIR"

	SettingsDirName   = ".claude"
	SettingsFile      = "settings.json"
	LocalSettingsFile = "settings.local.json"
	PlansDirName      = "plans"
)

// Paths contains the settings locations for one project.
type Paths struct {
	UserDir      string // ~/.claude
	ProjectDir   string // <project>/.claude
	User         string // ~/.claude/settings.json
	Project      string // <project>/.claude/settings.json
	ProjectLocal string // <project>/.claude/settings.local.json
	Plans        string // ~/.claude/plans
}

// GetPaths returns the settings locations for projectDir.
func GetPaths(projectDir string) *Paths {
	userDir := UserSettingsDir()
	projectSettingsDir := ProjectSettingsDir(projectDir)
	return &Paths{
		UserDir:      userDir,
		ProjectDir:   projectSettingsDir,
		User:         filepath.Join(userDir, SettingsFile),
		Project:      filepath.Join(projectSettingsDir, SettingsFile),
		ProjectLocal: filepath.Join(projectSettingsDir, LocalSettingsFile),
		Plans:        filepath.Join(userDir, PlansDirName),
	}
}

// Sources returns the settings files in merge order, lowest precedence first.
func (p *Paths) Sources() []string {
	return []string{p.User, p.Project, p.ProjectLocal}
}

// WatchDirs returns the directories whose settings files are watched.
func (p *Paths) WatchDirs() []string {
	if p.UserDir == p.ProjectDir {
		return []string{p.UserDir}
	}
	return []string{p.UserDir, p.ProjectDir}
}

// UserSettingsDir returns $CLAUDE_CONFIG_DIR, or ~/.claude.
func UserSettingsDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, SettingsDirName)
}

// ProjectSettingsDir returns <projectDir>/.claude.
func ProjectSettingsDir(projectDir string) string {
	return filepath.Join(projectDir, SettingsDirName)
}

// PlansDir returns the directory plan mode may write to.
func PlansDir() string {
	return filepath.Join(UserSettingsDir(), PlansDirName)
}

// IsSettingsFile reports whether name is one of the recognized file names.
func IsSettingsFile(name string) bool {
	base := filepath.Base(name)
	return base == SettingsFile || base == LocalSettingsFile
}
