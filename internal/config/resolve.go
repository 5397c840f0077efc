package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"

	"github.com/binarysemaphore/ylex/internal/prompt"
)

// ErrAborted is returned when the user stops answering config prompts.
var ErrAborted = errors.New("config: aborted")

// Resolver turns a config document into a valid Config, asking the user for
// replacements of invalid values when a Prompter is available.
type Resolver struct {
	FS       billy.Filesystem
	Path     string
	Prompter *prompt.Prompter // nil disables prompting
	Out      io.Writer
	Lookup   func(string) (string, bool)
}

// Resolve loads, overrides and validates the configuration. Invalid values
// are prompted for; once any value was prompted the user may save the
// corrected document. Validation repeats until the config is valid.
func (r *Resolver) Resolve() (*Config, error) {
	lookup := r.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	out := r.Out
	if out == nil {
		out = io.Discard
	}

	f, err := Load(r.FS, r.Path)
	if err != nil {
		return nil, err
	}
	cfg := f.Config()
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	for {
		err := cfg.Validate()
		if err == nil {
			return cfg, nil
		}
		var verr *ValidationError
		if !errors.As(err, &verr) || r.Prompter == nil {
			return nil, err
		}

		for _, field := range verr.Fields {
			fmt.Fprintf(out, "\nInvalid Config %q: %q\n", field.Key, field.Value)
			answer, err := r.Prompter.Ask(fmt.Sprintf("Enter new value for %q: ", field.Key))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrAborted, err)
			}
			switch field.Key {
			case KeyInstallDir:
				cfg.InstallDir = answer
			case KeyLogLocation:
				cfg.LogLocation = answer
			}
			f.Set(field.Key, answer)
		}

		save, err := r.Prompter.Confirm("Config was updated, save to config file?")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAborted, err)
		}
		if save {
			if err := f.Save(r.FS); err != nil {
				return nil, err
			}
			fmt.Fprintf(out, "Updated config saved to %q\n", r.Path)
		}
	}
}
