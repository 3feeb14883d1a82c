package profile

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/default.yaml
var defaultCatalog []byte

// Catalog is the on-disk shape of a profile file.
type Catalog struct {
	Exercises []*Profile `yaml:"exercises"`
}

// Decode reads a catalog, applies defaults and validates every profile.
func Decode(r io.Reader) ([]*Profile, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	for _, p := range c.Exercises {
		p.applyDefaults()
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return c.Exercises, nil
}

// Default returns the built-in exercise catalog.
func Default() ([]*Profile, error) {
	return Decode(bytes.NewReader(defaultCatalog))
}

// LoadFile reads a catalog from path.
func LoadFile(path string) ([]*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	profiles, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return profiles, nil
}

// Load returns the catalog at path, or the built-in one when path is empty.
func Load(path string) ([]*Profile, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Normalize applies defaults and validates a single profile, such as one
// submitted over the API.
func Normalize(p *Profile) error {
	p.applyDefaults()
	return p.Validate()
}
