package config

import (
	"os"
	"path/filepath"

	"github.com/gsaaad/ag1-researchagent/errors"
	"gopkg.in/yaml.v3"
)

// AppDir is the dot-directory used for config, sessions, notes and logs.
const AppDir = ".researchagent"

// DefaultTools is the toolset used when the configuration does not
// declare one. It mirrors the research assistant's native tool surface.
var DefaultTools = []string{
	"web_search",
	"wikipedia",
	"read_file",
	"write_file",
	"calculator",
	"save_note",
	"search_notes",
}

type FilesystemAccess struct {
	Hidden   []string `yaml:"hidden"`
	ReadOnly []string `yaml:"read_only"`
}

type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type Toolset struct {
	Name  string   `yaml:"name"`
	Tools []string `yaml:"tools"`
}

// Search holds tuning for the web_search tool.
type Search struct {
	MaxResults     int `yaml:"max_results"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type Config struct {
	LLMClient            string           `yaml:"llm"`
	Model                string           `yaml:"model"`
	MaxIterations        int              `yaml:"max_iterations"`
	MessageWindow        int              `yaml:"message_window"`
	Toolsets             []Toolset        `yaml:"toolsets"`
	AdditionalMCPServers []MCPServer      `yaml:"additional_mcp_servers"`
	FilesystemAccess     FilesystemAccess `yaml:"filesystem_access"`
	Search               Search           `yaml:"search"`
	NotesDir             string           `yaml:"notes_dir"`
}

// LoadConfig loads configuration from the user's home directory and the
// current working directory, with the latter taking precedence.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	// The app directory itself is never visible to the agent's file tools.
	cfg.FilesystemAccess.Hidden = append(cfg.FilesystemAccess.Hidden, AppDir, AppDir+"/**")

	// Load user-level config first
	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, AppDir, "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	// Load project-level config, overriding user-level
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, AppDir, "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Note: Unmarshal will overwrite fields present in the YAML. This provides
	// a simple merge where project-level config replaces user-level.
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) applyDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 10
	}
	if c.MessageWindow <= 0 {
		c.MessageWindow = 40
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 5
	}
	if c.Search.TimeoutSeconds <= 0 {
		c.Search.TimeoutSeconds = 30
	}
	if c.NotesDir == "" {
		c.NotesDir = filepath.Join(AppDir, "notes.bleve")
	}
}

// GetToolset finds a toolset by name. Returns the "default" toolset if the
// named one is not found or if an empty name is provided. When the
// configuration declares no toolsets at all, a built-in default covering
// the native tools is returned.
func (c *Config) GetToolset(name string) (*Toolset, error) {
	if name == "" {
		name = "default"
	}
	for _, ts := range c.Toolsets {
		if ts.Name == name {
			return &ts, nil
		}
	}
	if name == "default" {
		if len(c.Toolsets) == 0 {
			return &Toolset{Name: "default", Tools: DefaultTools}, nil
		}
		return nil, errors.New("mandatory 'default' toolset not found in configuration")
	}
	// Fallback to default if a specific toolset was requested but not found
	return c.GetToolset("default")
}
