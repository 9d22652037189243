package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigFileCreatesDefault(t *testing.T) {
	p := filepath.Join(t.TempDir(), configFile)
	c, err := LoadConfigFile(p)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if c.NoColor || c.MaxProcesses != nil || c.HashmapReadErrors != "" {
		t.Fatalf("default config should leave every option unset: %#v", c)
	}
	if c.ManagerSymbol() != DefaultProcessManagerSymbol {
		t.Fatalf("wrong default manager symbol %q", c.ManagerSymbol())
	}
	buf, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("default config file not written: %v", err)
	}
	if !strings.Contains(string(buf), "# hashmap-read-errors: fail") {
		t.Fatalf("unexpected default config file:\n%s", buf)
	}
}

func TestSaveAndLoadConfigFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), configFile)
	max := 10
	in := &Config{
		Aliases:              map[string][]string{"process": {"ps"}},
		NoColor:              true,
		MaxProcesses:         &max,
		HashmapReadErrors:    ReadErrorsTruncate,
		ProcessManagerSymbol: "mesos::process_manager",
	}
	if err := SaveConfigFile(in, p); err != nil {
		t.Fatalf("SaveConfigFile: %v", err)
	}
	out, err := LoadConfigFile(p)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if !out.NoColor || out.MaxProcesses == nil || *out.MaxProcesses != 10 || out.HashmapReadErrors != ReadErrorsTruncate {
		t.Fatalf("options lost: %#v", out)
	}
	if out.ManagerSymbol() != "mesos::process_manager" {
		t.Fatalf("wrong manager symbol %q", out.ManagerSymbol())
	}
	if len(out.Aliases["process"]) != 1 || out.Aliases["process"][0] != "ps" {
		t.Fatalf("aliases lost: %v", out.Aliases)
	}
}

func TestValidate(t *testing.T) {
	neg := -1
	for _, c := range []*Config{
		{HashmapReadErrors: "ignore"},
		{MaxProcesses: &neg},
		{MaxStringLen: &neg},
	} {
		if err := c.Validate(); err == nil {
			t.Errorf("expected error for %#v", c)
		}
	}
	if err := (&Config{HashmapReadErrors: ReadErrorsFail}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGetConfigFilePathXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	p, err := GetConfigFilePath(configFile)
	if err != nil {
		t.Fatal(err)
	}
	if p != filepath.Join(dir, configDir, configFile) {
		t.Fatalf("wrong path %q", p)
	}
}
