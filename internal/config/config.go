package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the manifest read when no --gitshelf flag is given.
const DefaultFile = "gitshelf.yml"

// Config represents a complete gitshelf manifest
type Config struct {
	Auth  AuthConfig `yaml:"auth"`
	Books []Entry    `yaml:"books" validate:"required,min=1,dive"`
}

// AuthConfig configures Git authentication for every git book
type AuthConfig struct {
	SSHKeyFile     string `yaml:"ssh_key_file"`
	HTTPSTokenFile string `yaml:"https_token_file"`
}

// Entry is one book as written in the manifest. A missing path and an
// inconsistent git/link pair are checked when the book is built, not here,
// so that one bad entry does not reject the whole shelf.
type Entry struct {
	Path string `yaml:"path"`
	// Book is the legacy spelling of Path.
	Book             string `yaml:"book"`
	Git              string `yaml:"git"`
	Link             string `yaml:"link"`
	Branch           string `yaml:"branch"`
	SkipRepoURLCheck bool   `yaml:"skiprepourlcheck"`
}

// Load reads and parses the manifest file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return Parse(data)
}

// Parse decodes, normalizes and validates manifest content.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Auth.SSHKeyFile = os.ExpandEnv(c.Auth.SSHKeyFile)
	c.Auth.HTTPSTokenFile = os.ExpandEnv(c.Auth.HTTPSTokenFile)
	for i := range c.Books {
		e := &c.Books[i]
		e.Path = os.ExpandEnv(e.Path)
		e.Book = os.ExpandEnv(e.Book)
		e.Git = os.ExpandEnv(e.Git)
		e.Link = os.ExpandEnv(e.Link)
		e.Branch = os.ExpandEnv(e.Branch)
	}
}

// applyDefaults fills in path from the legacy book key.
func (c *Config) applyDefaults() {
	for i := range c.Books {
		if c.Books[i].Path == "" {
			c.Books[i].Path = c.Books[i].Book
		}
	}
}

// Validate checks the manifest for errors
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return describe(verrs[0])
		}
		return err
	}

	// Validate auth: only one auth method may be configured
	if c.Auth.SSHKeyFile != "" && c.Auth.HTTPSTokenFile != "" {
		return fmt.Errorf("auth: only one of ssh_key_file or https_token_file may be set")
	}

	return nil
}

// newValidator reports fields by their yaml names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func describe(fe validator.FieldError) error {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "min":
		return fmt.Errorf("%s must have at least %s entry", field, fe.Param())
	default:
		return fmt.Errorf("%s failed %s validation", field, fe.Tag())
	}
}

// AuthMethod returns a description of the configured auth method
func (c *Config) AuthMethod() string {
	if c.Auth.SSHKeyFile != "" {
		return "ssh"
	}
	if c.Auth.HTTPSTokenFile != "" {
		return "https"
	}
	return "none"
}
