package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServerConfig server profile
type ServerConfig struct {
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
	AdminPrefix string `yaml:"admin_prefix,omitempty"`
	User        string `yaml:"user,omitempty"`
	Password    string `yaml:"password,omitempty"`
}

// Config CLI configuration
type Config struct {
	DefaultServer string                  `yaml:"default_server"`
	Servers       map[string]ServerConfig `yaml:"servers"`
	configPath    string
}

// DefaultConfigPath returns ~/.errorshield/config.yaml
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".errorshield", "config.yaml"), nil
}

// LoadConfig loads the configuration from the default path
func LoadConfig() (*Config, error) {
	configPath, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFrom(configPath)
}

// LoadConfigFrom loads the configuration at configPath, writing a default
// one with a single local profile when the file does not exist.
func LoadConfigFrom(configPath string) (*Config, error) {
	config := &Config{
		configPath: configPath,
		Servers:    make(map[string]ServerConfig),
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		config.DefaultServer = "local"
		config.Servers["local"] = ServerConfig{
			URL:         "http://localhost:8080",
			Description: "Local errorshield server",
			AdminPrefix: "/admin",
			User:        "admin",
		}
		if err := config.Save(); err != nil {
			return nil, err
		}
		return config, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	if config.Servers == nil {
		config.Servers = make(map[string]ServerConfig)
	}

	config.configPath = configPath
	return config, nil
}

// Save saves the configuration
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// Profiles may hold a password
	return os.WriteFile(c.configPath, data, 0o600)
}

// AddServer adds a server
func (c *Config) AddServer(name string, server ServerConfig) error {
	if name == "" {
		return fmt.Errorf("server name cannot be empty")
	}
	if server.URL == "" {
		return fmt.Errorf("server URL cannot be empty")
	}

	c.Servers[name] = server

	// If this is the first server, set it as default
	if c.DefaultServer == "" {
		c.DefaultServer = name
	}

	return c.Save()
}

// RemoveServer removes a server
func (c *Config) RemoveServer(name string) error {
	if _, exists := c.Servers[name]; !exists {
		return fmt.Errorf("server '%s' not found", name)
	}

	delete(c.Servers, name)

	if c.DefaultServer == name {
		c.DefaultServer = ""
		if names := c.ServerNames(); len(names) > 0 {
			c.DefaultServer = names[0]
		}
	}

	return c.Save()
}

// SetDefault sets the default server
func (c *Config) SetDefault(name string) error {
	if _, exists := c.Servers[name]; !exists {
		return fmt.Errorf("server '%s' not found", name)
	}

	c.DefaultServer = name
	return c.Save()
}

// GetServer gets a server profile; an empty name selects the default
func (c *Config) GetServer(name string) (*ServerConfig, error) {
	if name == "" {
		name = c.DefaultServer
	}

	server, exists := c.Servers[name]
	if !exists {
		return nil, fmt.Errorf("server '%s' not found", name)
	}

	return &server, nil
}

// ServerNames returns the profile names in sorted order
func (c *Config) ServerNames() []string {
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve turns the --server argument into a profile. A URL is used as is,
// anything else names a profile and an empty value picks the default.
func (c *Config) Resolve(arg string) (*ServerConfig, error) {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return &ServerConfig{URL: arg, AdminPrefix: "/admin"}, nil
	}
	return c.GetServer(arg)
}
