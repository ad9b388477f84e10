package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is a profile or suite file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor returns the format implied by the file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", &LoadError{File: path, Message: "unsupported file extension (want .yaml, .yml or .toml)"}
	}
}

// decode unmarshals data strictly: unknown keys are errors.
func decode(data []byte, format Format, out any) error {
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return &LoadError{Message: "failed to parse YAML", Cause: err}
		}
		return nil

	case FormatTOML:
		md, err := toml.Decode(string(data), out)
		if err != nil {
			le := &LoadError{Message: "failed to parse TOML", Cause: err}
			var pe toml.ParseError
			if errors.As(err, &pe) {
				le.Line = pe.Position.Line
			}
			return le
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return &LoadError{Message: "unknown keys: " + strings.Join(keys, ", ")}
		}
		return nil

	default:
		return &LoadError{Message: fmt.Sprintf("unknown format %q", format)}
	}
}

// readFile reads and decodes path into out, stamping errors with the path.
func readFile(path string, out any) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	if err := decode(data, format, out); err != nil {
		return withFile(err, path)
	}
	return nil
}

func withFile(err error, path string) error {
	var le *LoadError
	if errors.As(err, &le) {
		le.File = path
		return le
	}
	return &LoadError{File: path, Message: err.Error()}
}

// ParseProfile parses and validates a profile.
func ParseProfile(data []byte, format Format) (*Profile, error) {
	var p Profile
	if err := decode(data, format, &p); err != nil {
		return nil, err
	}
	if err := ValidateProfile(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadProfile loads a profile from a .yaml, .yml or .toml file.
// Relative payload and kernel paths are resolved against the file's directory.
func LoadProfile(path string) (*Profile, error) {
	var p Profile
	if err := readFile(path, &p); err != nil {
		return nil, err
	}
	if err := ValidateProfile(&p); err != nil {
		return nil, withFile(err, path)
	}
	dir := filepath.Dir(path)
	p.Payload.File = resolve(dir, p.Payload.File)
	p.Target.Kernel = resolve(dir, p.Target.Kernel)
	return &p, nil
}

// ParseSuite parses and validates a suite.
func ParseSuite(data []byte, format Format) (*Suite, error) {
	var s Suite
	if err := decode(data, format, &s); err != nil {
		return nil, err
	}
	if err := ValidateSuite(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadSuite loads a suite file. A relative profile path is resolved
// against the suite's directory.
func LoadSuite(path string) (*Suite, error) {
	var s Suite
	if err := readFile(path, &s); err != nil {
		return nil, err
	}
	if err := ValidateSuite(&s); err != nil {
		return nil, withFile(err, path)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	s.Profile = resolve(filepath.Dir(path), s.Profile)
	return &s, nil
}

// LoadDirectory loads all suites from a directory.
// Only files with .yaml, .yml or .toml extensions are loaded.
func LoadDirectory(dir string) ([]*Suite, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadError{File: dir, Message: "failed to read directory", Cause: err}
	}

	var suites []*Suite
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, err := FormatFor(path); err != nil {
			continue
		}
		s, err := LoadSuite(path)
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
