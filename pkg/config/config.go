package config

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v2"
)

const (
	configDir       string = "lpdbg"
	configDirHidden string = ".lpdbg"
	configFile      string = "config.yml"
)

// Values accepted by the hashmap-read-errors option.
const (
	// ReadErrorsFail makes a corrupt process table fail the whole listing.
	ReadErrorsFail = "fail"
	// ReadErrorsTruncate prints the entries read before the corruption.
	ReadErrorsTruncate = "truncate"
)

// DefaultProcessManagerSymbol is the global variable the process command
// starts from.
const DefaultProcessManagerSymbol = "process::process_manager"

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Commands aliases.
	Aliases map[string][]string `yaml:"aliases"`

	// NoColor disables the ANSI colors in the output of printers.
	NoColor bool `yaml:"no-color"`

	// MaxProcesses is the maximum number of process table entries the
	// process manager printer lists.
	MaxProcesses *int `yaml:"max-processes,omitempty"`

	// HashmapReadErrors selects what a printer does when the node chain of
	// a hash table can not be read: "fail" (the default) or "truncate".
	HashmapReadErrors string `yaml:"hashmap-read-errors,omitempty"`

	// ProcessManagerSymbol is the name of the global pointer to the
	// process manager.
	ProcessManagerSymbol string `yaml:"process-manager-symbol,omitempty"`

	// MaxStringLen is the maximum number of bytes read from a std::string.
	MaxStringLen *int `yaml:"max-string-len,omitempty"`
}

// Validate checks the values of the options that have a fixed set of
// accepted values.
func (c *Config) Validate() error {
	switch c.HashmapReadErrors {
	case "", ReadErrorsFail, ReadErrorsTruncate:
	default:
		return fmt.Errorf("invalid value %q for hashmap-read-errors, must be %q or %q", c.HashmapReadErrors, ReadErrorsFail, ReadErrorsTruncate)
	}
	if c.MaxProcesses != nil && *c.MaxProcesses < 0 {
		return fmt.Errorf("invalid value %d for max-processes", *c.MaxProcesses)
	}
	if c.MaxStringLen != nil && *c.MaxStringLen < 0 {
		return fmt.Errorf("invalid value %d for max-string-len", *c.MaxStringLen)
	}
	return nil
}

// ManagerSymbol returns the configured process manager symbol or its
// default.
func (c *Config) ManagerSymbol() string {
	if c == nil || c.ProcessManagerSymbol == "" {
		return DefaultProcessManagerSymbol
	}
	return c.ProcessManagerSymbol
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() (*Config, error) {
	err := createConfigPath()
	if err != nil {
		return &Config{}, fmt.Errorf("could not create config directory: %v", err)
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to get config file path: %v", err)
	}
	return LoadConfigFile(fullConfigFile)
}

// LoadConfigFile reads the configuration at fullConfigFile, creating it
// with the default contents if it does not exist.
func LoadConfigFile(fullConfigFile string) (*Config, error) {
	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			return &Config{}, fmt.Errorf("error creating default config file: %v", err)
		}
	}
	defer func() {
		err := f.Close()
		if err != nil {
			fmt.Printf("Closing config file failed: %v.", err)
		}
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to read config data: %v", err)
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to decode config file: %v", err)
	}
	if err := c.Validate(); err != nil {
		return &Config{}, err
	}

	return &c, nil
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}
	return SaveConfigFile(conf, fullConfigFile)
}

// SaveConfigFile marshals conf to fullConfigFile.
func SaveConfigFile(conf *Config, fullConfigFile string) error {
	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for lpdbg.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Provided aliases will be added to the default aliases for a given command.
aliases:
  # command: ["alias1", "alias2"]

# Uncomment the following line to disable colors in printer output.
# no-color: true

# Maximum number of process table entries listed by the process command.
# max-processes: 1000

# What to do when the process table can not be read completely:
# "fail" reports an error, "truncate" prints the entries read so far.
# hashmap-read-errors: fail

# Global pointer to the libprocess process manager.
# process-manager-symbol: process::process_manager

# Maximum loaded string length.
# max-string-len: 256
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	if configPath := os.Getenv("XDG_CONFIG_HOME"); configPath != "" {
		return path.Join(configPath, configDir, file), nil
	}

	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	if runtime.GOOS == "linux" {
		return filepath.Join(userHomeDir, ".config", configDir, file), nil
	}
	return path.Join(userHomeDir, configDirHidden, file), nil
}
