package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/animus-labs/animus-mlops/internal/jobspec"
)

// Profile is the optional per-pipeline overlay. Empty naming templates fall
// back to the defaults.
type Profile struct {
	Naming          jobspec.Naming    `yaml:"naming"`
	HyperParameters map[string]string `yaml:"hyperparameters"`
}

func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return Profile{}, nil
		}
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	return p, nil
}

// LoadProfile reads path, or returns the empty profile when path is blank.
func LoadProfile(path string) (Profile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Profile{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data)
}

func (p Profile) Composer() (*jobspec.Composer, error) {
	c, err := jobspec.NewComposer(p.Naming, p.HyperParameters)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return c, nil
}
