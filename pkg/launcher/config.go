// Package launcher contains configuration types and helpers for viperssh.
package launcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the full YAML configuration for viperssh.
//
// Example YAML:
//
// environments:
//   prod_us_east:
//     suffix: .prod.example.com
//     hosts:
//       - web01
//       - db: db01.internal.example.com
//
// Host entries come in two shapes:
//   - a plain string: display name and connection token are the same
//   - a single-key mapping: the key is the display alias, the value the token
type Config struct {
	Environments []Environment
}

// Environment is a named group of hosts sharing an optional FQDN suffix.
type Environment struct {
	// Name is the internal identifier (underscores allowed; they render as spaces).
	Name string

	// Suffix is appended to bare host tokens when building the connection target.
	Suffix string

	// Hosts in file order.
	Hosts []HostEntry
}

// HostEntry is a selectable host with a display alias and a connection token.
type HostEntry struct {
	Display string
	Target  string
}

// UnmarshalYAML accepts either a scalar ("web01") or a single-key mapping
// ({db: db01.internal}).
func (h *HostEntry) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		h.Display = strings.TrimSpace(s)
		h.Target = h.Display
		return nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: host mapping must have exactly one key", node.Line)
		}
		var alias, target string
		if err := node.Content[0].Decode(&alias); err != nil {
			return err
		}
		if err := node.Content[1].Decode(&target); err != nil {
			return err
		}
		h.Display = strings.TrimSpace(alias)
		h.Target = strings.TrimSpace(target)
		return nil
	default:
		return fmt.Errorf("line %d: host entry must be a string or a single-key mapping", node.Line)
	}
}

// configFile is the raw on-disk shape; environments are decoded manually so
// the file order of the mapping is preserved (Go maps would scramble it).
type configFile struct {
	Environments yaml.Node `yaml:"environments"`
}

type environmentBody struct {
	Suffix string      `yaml:"suffix,omitempty"`
	Hosts  []HostEntry `yaml:"hosts"`
}

// ErrConfigNotFound is returned when no configuration file can be located.
var ErrConfigNotFound = errors.New("config not found")

const configFilename = "hosts.yaml"

// LoadConfig discovers and loads the YAML configuration.
// If explicitDir is empty, it searches common locations in order:
// 1. $VIPERSSH_CONFIG
// 2. $XDG_CONFIG_HOME/viperssh/hosts.yaml
// 3. ~/.config/viperssh/hosts.yaml
//
// Returns the parsed Config and the path that was used.
//
// An explicit dir is authoritative: no fallback to the other candidates, and
// a missing file there is reported with that path.
func LoadConfig(explicitDir string) (*Config, string, error) {
	if dir := strings.TrimSpace(explicitDir); dir != "" {
		return loadConfigFile(filepath.Join(expandPath(dir), configFilename))
	}

	var lastErr error
	for _, p := range ConfigPathCandidates("") {
		p = expandPath(p)
		if p == "" {
			continue
		}
		cfg, path, err := loadConfigFile(p)
		if err == nil {
			return cfg, path, nil
		}
		if !errors.Is(err, ErrConfigNotFound) {
			return nil, path, err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrConfigNotFound
	}
	return nil, "", lastErr
}

func loadConfigFile(p string) (*Config, string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", missingConfigError(p)
		}
		return nil, "", err
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, p, fmt.Errorf("parse yaml %s: %w", p, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, p, fmt.Errorf("invalid config %s: %w", p, err)
	}
	return cfg, p, nil
}

// missingConfigError points the user at the example file when one sits next to
// the expected config path.
func missingConfigError(path string) error {
	example := path + ".example"
	if _, err := os.Stat(example); err == nil {
		return fmt.Errorf("%w: %s (copy the example to get started: cp %s %s)",
			ErrConfigNotFound, path, example, path)
	}
	return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
}

// ConfigPathCandidates returns possible configuration file paths, in priority order.
// If explicitDir is provided, its hosts.yaml is returned first (expanded).
func ConfigPathCandidates(explicitDir string) []string {
	var out []string
	if explicitDir != "" {
		out = append(out, filepath.Join(explicitDir, configFilename))
	}
	if env := os.Getenv("VIPERSSH_CONFIG"); env != "" {
		out = append(out, filepath.Join(env, configFilename))
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		out = append(out, filepath.Join(xdg, "viperssh", configFilename))
	}
	home, _ := os.UserHomeDir()
	if home != "" {
		out = append(out, filepath.Join(home, ".config", "viperssh", configFilename))
	}
	return out
}

// ParseConfig decodes hosts.yaml bytes into a Config, preserving the file
// order of the environments mapping.
func ParseConfig(data []byte) (*Config, error) {
	var raw configFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw.Environments.Kind == 0 {
		return nil, errors.New("missing 'environments' section")
	}
	if raw.Environments.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: 'environments' must be a mapping", raw.Environments.Line)
	}

	cfg := &Config{}
	content := raw.Environments.Content
	for i := 0; i+1 < len(content); i += 2 {
		var name string
		if err := content[i].Decode(&name); err != nil {
			return nil, err
		}
		var body environmentBody
		if err := content[i+1].Decode(&body); err != nil {
			return nil, fmt.Errorf("environment %q: %w", name, err)
		}
		cfg.Environments = append(cfg.Environments, Environment{
			Name:   strings.TrimSpace(name),
			Suffix: strings.TrimSpace(body.Suffix),
			Hosts:  body.Hosts,
		})
	}
	return cfg, nil
}

// Validate performs basic sanity checks on the configuration.
//
// - At least one environment must be defined.
// - Environment names must be unique and non-empty.
// - Host entries must have non-empty display names and targets.
func (c *Config) Validate() error {
	if len(c.Environments) == 0 {
		return errors.New("no environments defined")
	}
	seen := map[string]struct{}{}
	for i, env := range c.Environments {
		if env.Name == "" {
			return fmt.Errorf("environments[%d]: name is required", i)
		}
		if _, dup := seen[env.Name]; dup {
			return fmt.Errorf("environments[%d]: duplicate environment name %q", i, env.Name)
		}
		seen[env.Name] = struct{}{}

		for j, h := range env.Hosts {
			if h.Display == "" {
				return fmt.Errorf("environments[%s].hosts[%d]: empty host entry", env.Name, j)
			}
			if h.Target == "" {
				return fmt.Errorf("environments[%s].hosts[%d](%s): empty target", env.Name, j, h.Display)
			}
		}
	}
	return nil
}

// Environment returns the named environment, or nil if not found.
func (c *Config) Environment(name string) *Environment {
	name = strings.TrimSpace(name)
	for i := range c.Environments {
		if c.Environments[i].Name == name {
			return &c.Environments[i]
		}
	}
	return nil
}

// DisplayName converts an internal environment name to a display name
// (underscores become spaces).
func DisplayName(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

// BuildTarget builds the full connection target for a host token.
//
// Tokens that already look fully qualified (contain '.' or '@') pass through
// unchanged; bare tokens get the environment suffix appended.
func (e *Environment) BuildTarget(token string) string {
	token = strings.TrimSpace(token)
	if strings.ContainsAny(token, ".@") {
		return token
	}
	return token + e.Suffix
}

// HostByDisplay returns the host entry whose display alias matches, or nil.
func (e *Environment) HostByDisplay(display string) *HostEntry {
	display = strings.TrimSpace(display)
	for i := range e.Hosts {
		if e.Hosts[i].Display == display {
			return &e.Hosts[i]
		}
	}
	return nil
}

// FindTarget searches every environment for a host whose display alias or
// target token matches, and returns the built connection target. Tokens that
// already look like full destinations ('.' or '@') pass through unchanged, so
// direct-connect (--host) accepts both config aliases and literal user@host.
func (c *Config) FindTarget(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	for i := range c.Environments {
		env := &c.Environments[i]
		for j := range env.Hosts {
			h := &env.Hosts[j]
			if h.Display == token || h.Target == token {
				return env.BuildTarget(h.Target), true
			}
		}
	}
	if strings.ContainsAny(token, ".@") {
		return token, true
	}
	return "", false
}

// DefaultConfigDir returns the directory path for this application's config.
// Precedence:
//  1. $VIPERSSH_CONFIG
//  2. $XDG_CONFIG_HOME/viperssh
//  3. ~/.config/viperssh
func DefaultConfigDir() (string, error) {
	if env := strings.TrimSpace(os.Getenv("VIPERSSH_CONFIG")); env != "" {
		return env, nil
	}
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "viperssh"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "viperssh"), nil
}

// expandPath expands leading "~" and environment variables in a path.
// If the input is empty, returns "".
func expandPath(p string) string {
	if p == "" {
		return ""
	}
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~") {
		home, _ := os.UserHomeDir()
		if home != "" {
			if p == "~" {
				p = home
			} else if strings.HasPrefix(p, "~/") {
				p = filepath.Join(home, p[2:])
			}
			// Note: "~user" not handled to avoid userdb lookups; rare for local client config paths.
		}
	}
	return p
}
