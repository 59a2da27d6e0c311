package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"github.com/Abhishekkr206/WebBaseline/report"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	ScanConfig struct {
		Include       []string `yaml:"include" validate:"min=1,dive,required,startswith=."`
		Exclude       []string `yaml:"exclude" validate:"dive,required"`
		Workers       int      `yaml:"workers" validate:"min=0"`
		EmbeddedCSS   bool     `yaml:"embedded_css"`
		MaxFileSize   int64    `yaml:"max_file_size" validate:"min=0"`
		FixBundles    bool     `yaml:"fix_bundles"`
		BundleCharset string   `yaml:"bundle_charset,omitempty"`
	}

	WatchConfig struct {
		DebounceMs int `yaml:"debounce_ms" validate:"min=0,max=60000"`
	}

	DatasetConfig struct {
		Path string `yaml:"path,omitempty" validate:"omitempty,filepath"`
	}

	OutputConfig struct {
		Format      report.Format `yaml:"format"`
		Destination string        `yaml:"destination,omitempty" sanitize:"path_clean,assure_dir_exists_for_file" validate:"omitempty,filepath"`
		Color       ColorMode     `yaml:"color"`
		FailOn      FailMode      `yaml:"fail_on"`
	}

	SuggestConfig struct {
		Enable     bool         `yaml:"enable"`
		Endpoint   string       `yaml:"endpoint,omitempty" validate:"omitempty,url"`
		Model      string       `yaml:"model" validate:"required"`
		APIKey     SecretString `yaml:"api_key,omitempty"`
		TimeoutSec int          `yaml:"timeout_sec" validate:"min=1,max=600"`
		MaxRetries int          `yaml:"max_retries" validate:"min=0,max=10"`
	}

	HistoryConfig struct {
		Enable bool   `yaml:"enable"`
		Path   string `yaml:"path" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
		Keep   int    `yaml:"keep" validate:"min=1"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Scan      ScanConfig     `yaml:"scan"`
		Watch     WatchConfig    `yaml:"watch"`
		Dataset   DatasetConfig  `yaml:"dataset"`
		Output    OutputConfig   `yaml:"output"`
		Suggest   SuggestConfig  `yaml:"suggest"`
		History   HistoryConfig  `yaml:"history"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

// Included reports whether a file with the given extension takes part in
// scanning. Extensions are matched case-insensitively and include the dot.
func (c *ScanConfig) Included(ext string) bool {
	for _, e := range c.Include {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// Excluded reports whether a directory with the given base name is skipped
// while walking the tree.
func (c *ScanConfig) Excluded(name string) bool {
	for _, e := range c.Exclude {
		if e == name {
			return true
		}
	}
	return false
}

// WorkerCount resolves the configured worker count, zero meaning one worker
// per CPU.
func (c *ScanConfig) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// Oversized reports whether a source of the given size is over the configured
// cap, zero meaning no cap.
func (c *ScanConfig) Oversized(size int64) bool {
	return c.MaxFileSize > 0 && size > c.MaxFileSize
}

// Debounce returns the configured settle time for file change events.
func (c *WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Timeout returns the configured limit for a single advisor call.
func (c *SuggestConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("failed to sanitize configuration: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("failed to validate configuration: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
