package launcher

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleYAML = `
environments:
  production:
    suffix: .prod.example.com
    hosts:
      - web1
      - web2
      - db primary: db1
  staging:
    suffix: .stage.example.com
    hosts:
      - web1
      - admin@jump.example.com
  lab:
    hosts:
      - bench: 10.0.0.5
`

func TestParseConfigPreservesEnvironmentOrder(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	var names []string
	for _, e := range cfg.Environments {
		names = append(names, e.Name)
	}
	want := []string{"production", "staging", "lab"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("environment order = %v, want %v", names, want)
	}
}

func TestParseConfigHostEntryShapes(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	prod := cfg.Environment("production")
	if prod == nil {
		t.Fatal("production environment missing")
	}
	if got := len(prod.Hosts); got != 3 {
		t.Fatalf("production hosts = %d, want 3", got)
	}
	// Scalar entry: display == target.
	if prod.Hosts[0].Display != "web1" || prod.Hosts[0].Target != "web1" {
		t.Fatalf("scalar host = %+v", prod.Hosts[0])
	}
	// Mapping entry: display differs from target.
	if prod.Hosts[2].Display != "db primary" || prod.Hosts[2].Target != "db1" {
		t.Fatalf("mapping host = %+v", prod.Hosts[2])
	}
}

func TestBuildTarget(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	prod := cfg.Environment("production")
	lab := cfg.Environment("lab")

	cases := []struct {
		env   *Environment
		token string
		want  string
	}{
		{prod, "web1", "web1.prod.example.com"},
		// Tokens already qualified or carrying a user pass through untouched.
		{prod, "admin@web1", "admin@web1"},
		{prod, "web1.other.example.com", "web1.other.example.com"},
		{lab, "10.0.0.5", "10.0.0.5"},
		// No suffix configured: bare token stays bare.
		{lab, "bench2", "bench2"},
	}
	for _, c := range cases {
		if got := c.env.BuildTarget(c.token); got != c.want {
			t.Errorf("BuildTarget(%q, env=%s) = %q, want %q", c.token, c.env.Name, got, c.want)
		}
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"no environments", "environments: {}\n", "no environments"},
		{"empty host entry", "environments:\n  a:\n    hosts:\n      - \"\"\n", "empty host entry"},
		{"duplicate environment", "environments:\n  a:\n    hosts: [x]\n  a:\n    hosts: [y]\n", "duplicate environment"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(c.yaml))
			if err != nil {
				t.Fatalf("ParseConfig: %v", err)
			}
			verr := cfg.Validate()
			if verr == nil {
				t.Fatalf("expected validation error for %s", c.name)
			}
			if !strings.Contains(verr.Error(), c.want) {
				t.Fatalf("error = %q, want substring %q", verr.Error(), c.want)
			}
		})
	}
}

func TestLoadConfigMissing(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("VIPERSSH_CONFIG", "")
	_, _, err := LoadConfig(dir)
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("err = %v, want ErrConfigNotFound", err)
	}
	// An explicit dir is authoritative: the error names that dir's hosts.yaml,
	// not some fallback candidate.
	if !strings.Contains(err.Error(), filepath.Join(dir, "hosts.yaml")) {
		t.Fatalf("error should name the requested path, got %q", err.Error())
	}
}

func TestLoadConfigExplicitDirDoesNotFallBack(t *testing.T) {
	// A valid config exists in the fallback location, but the user asked for
	// an explicit (empty) dir; that request must not be silently redirected.
	fallback := t.TempDir()
	t.Setenv("VIPERSSH_CONFIG", fallback)
	if err := os.WriteFile(filepath.Join(fallback, "hosts.yaml"), []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	empty := t.TempDir()
	_, _, err := LoadConfig(empty)
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("err = %v, want ErrConfigNotFound", err)
	}
	if !strings.Contains(err.Error(), filepath.Join(empty, "hosts.yaml")) {
		t.Fatalf("error names %q, want the explicit dir", err.Error())
	}
}

func TestLoadConfigExplicitDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, gotPath, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if gotPath != path {
		t.Fatalf("path = %q, want %q", gotPath, path)
	}
	if len(cfg.Environments) != 3 {
		t.Fatalf("environments = %d, want 3", len(cfg.Environments))
	}
}

func TestFindTarget(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	cases := []struct {
		token  string
		want   string
		wantOK bool
	}{
		// Display-name lookup resolves through the owning environment.
		{"db primary", "db1.prod.example.com", true},
		// First environment wins for duplicate display names.
		{"web1", "web1.prod.example.com", true},
		// Literal destinations pass through.
		{"root@somewhere.example.net", "root@somewhere.example.net", true},
		{"somewhere.example.net", "somewhere.example.net", true},
		// Bare unknown token: nothing to resolve against.
		{"nonesuch", "", false},
	}
	for _, c := range cases {
		got, ok := cfg.FindTarget(c.token)
		if ok != c.wantOK || got != c.want {
			t.Errorf("FindTarget(%q) = (%q, %v), want (%q, %v)", c.token, got, ok, c.want, c.wantOK)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("prod_us_east"); got != "prod us east" {
		t.Fatalf("DisplayName = %q", got)
	}
}
