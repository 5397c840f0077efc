// Package config loads, validates and repairs the ylex configuration file.
//
// The file is a flat JSON (or YAML) object using the human-readable keys the
// original extractor shipped with:
//
//	{
//	    "Ylands Install Location": "C:\\Program Files (x86)\\Steam\\steamapps\\common\\Ylands",
//	    "Log Location": "Ylands_Data\\log_userscript_ct.txt",
//	    "Auto Nest Scenes": true,
//	    "Output Pretty": false
//	}
//
// Unknown keys are preserved when the file is written back.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"gopkg.in/yaml.v3"

	"github.com/binarysemaphore/ylex/internal/output"
)

const DefaultFile = "config.json"

// File keys.
const (
	KeyInstallDir  = "Ylands Install Location"
	KeyLogLocation = "Log Location"
	KeyNestScene   = "Auto Nest Scenes"
	KeyPretty      = "Output Pretty"
)

// Environment overrides, applied after the file is read.
const (
	EnvInstallDir  = "YLEX_INSTALL_DIR"
	EnvLogLocation = "YLEX_LOG_LOCATION"
	EnvNestScene   = "YLEX_NEST"
	EnvPretty      = "YLEX_PRETTY"
)

// Config is the resolved configuration.
type Config struct {
	InstallDir  string
	LogLocation string
	NestScene   bool
	Pretty      bool
}

// LogPath is the userscript log location resolved against the install dir.
func (c *Config) LogPath() string {
	if c.LogLocation == "" || filepath.IsAbs(c.LogLocation) {
		return c.LogLocation
	}
	return filepath.Join(c.InstallDir, c.LogLocation)
}

// File is a config document as stored on disk.
type File struct {
	Path string
	Data map[string]any
}

func (f *File) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(f.Path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads the config document at path. A missing file yields an empty
// document so every required value gets prompted for.
func Load(fsys billy.Filesystem, path string) (*File, error) {
	f := &File{Path: path, Data: map[string]any{}}
	raw, err := util.ReadFile(fsys, path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var v any
	if f.isYAML() {
		err = yaml.Unmarshal(raw, &v)
	} else {
		v, err = output.Decode(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if v == nil {
		return f, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("config %s: top level is %T, want an object", path, v)
	}
	f.Data = m
	return f, nil
}

// Save writes the document back to its path.
func (f *File) Save(fsys billy.Filesystem) error {
	var (
		out []byte
		err error
	)
	if f.isYAML() {
		out, err = yaml.Marshal(f.Data)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
	} else {
		opts := ojg.DefaultOptions
		opts.Indent = 4
		opts.Sort = true
		out = []byte(oj.JSON(f.Data, &opts) + "\n")
	}
	if err := util.WriteFile(fsys, f.Path, out, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", f.Path, err)
	}
	return nil
}

// Config decodes the typed configuration from the document.
func (f *File) Config() *Config {
	return &Config{
		InstallDir:  stringValue(f.Data[KeyInstallDir]),
		LogLocation: stringValue(f.Data[KeyLogLocation]),
		NestScene:   boolValue(f.Data[KeyNestScene]),
		Pretty:      boolValue(f.Data[KeyPretty]),
	}
}

// Set stores a typed value back into the document under key.
func (f *File) Set(key string, value any) {
	f.Data[key] = value
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func boolValue(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	case int64:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	}
	return false
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is fine.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides c with any YLEX_* variables set in the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvInstallDir); ok && v != "" {
		c.InstallDir = v
	}
	if v, ok := lookup(EnvLogLocation); ok && v != "" {
		c.LogLocation = v
	}
	for _, b := range []struct {
		env string
		dst *bool
	}{
		{EnvNestScene, &c.NestScene},
		{EnvPretty, &c.Pretty},
	} {
		v, ok := lookup(b.env)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", b.env, v, err)
		}
		*b.dst = parsed
	}
	return nil
}

// FieldError names one config value that failed validation.
type FieldError struct {
	Key   string
	Value string
}

// ValidationError lists every invalid config value.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%q: %q", f.Key, f.Value)
	}
	return "invalid config " + strings.Join(parts, ", ")
}

// paths is the validation view of a Config: the install dir must be an
// existing directory and the log must be an existing file.
type paths struct {
	InstallDir string `validate:"required,dir"`
	LogPath    string `validate:"required,file"`
}

var validate = validator.New()

// Validate checks that the configured locations exist on the local disk.
func (c *Config) Validate() error {
	err := validate.Struct(paths{InstallDir: c.InstallDir, LogPath: c.LogPath()})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		switch fe.StructField() {
		case "InstallDir":
			out.Fields = append(out.Fields, FieldError{Key: KeyInstallDir, Value: c.InstallDir})
		case "LogPath":
			out.Fields = append(out.Fields, FieldError{Key: KeyLogLocation, Value: c.LogLocation})
		}
	}
	return out
}
