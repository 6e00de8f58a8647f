// Package config reads artifact configuration documents and resolves them
// into an ordered list of artifacts to fetch for a given platform.
package config

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnreadable = errors.New("configuration unreadable")
	ErrInvalid    = errors.New("invalid configuration")
)

// openError reports a configuration file that could not be opened. It
// matches ErrUnreadable and unwraps to the underlying OS error.
type openError struct {
	path string
	err  error
}

func (e *openError) Error() string {
	return ErrUnreadable.Error() + ": could not open " + e.path + ": " + e.err.Error()
}

func (e *openError) Is(target error) bool {
	return target == ErrUnreadable
}

func (e *openError) Unwrap() error {
	return e.err
}

// RemoteCredentials authenticate requests to a named remote. Values may
// reference environment variables as $VAR or ${VAR}. When Password is empty
// and KeyringService is set, the password is read from the OS keyring.
type RemoteCredentials struct {
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	KeyringService string `yaml:"keyring_service"`
}

// Variant overrides the source of an artifact for one platform selector
// such as "win/cuda" or "unix/cpu".
type Variant struct {
	URL    string `yaml:"url"`
	SHA256 string `yaml:"sha256"`
}

// Artifact is one entry of a configuration document.
type Artifact struct {
	Name         string             `yaml:"name"`
	URL          string             `yaml:"url"`
	SHA256       string             `yaml:"sha256"`
	Path         string             `yaml:"path"`
	ExtractTo    string             `yaml:"extract_to"`
	Remote       string             `yaml:"remote"`
	SignatureURL string             `yaml:"signature_url"`
	Variants     map[string]Variant `yaml:"variants"`
}

// Document is the merged content of one or more configuration files.
type Document struct {
	KeyringPath string                       `yaml:"keyring"`
	Remotes     map[string]RemoteCredentials `yaml:"remotes"`
	Artifacts   []Artifact                   `yaml:"artifacts"`
}

// Load reads and merges the configuration files in order. Artifacts are
// appended; remotes and the keyring of later files override earlier ones.
func Load(paths ...string) (*Document, error) {
	if len(paths) == 0 {
		return nil, errors.Wrap(ErrUnreadable, "no configuration files given")
	}

	merged := &Document{Remotes: map[string]RemoteCredentials{}}
	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			return nil, &openError{path: path, err: err}
		}

		doc, err := Parse(file)
		file.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "%s", path)
		}

		merged.merge(doc)
	}

	return merged, nil
}

// Parse decodes a single YAML or JSON document. Unknown keys are rejected.
func Parse(r io.Reader) (*Document, error) {
	doc := &Document{}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(doc); err != nil && err != io.EOF {
		return nil, errors.Wrapf(ErrUnreadable, "could not parse: %v", err)
	}

	return doc, nil
}

// Keyring returns the path of the OpenPGP keyring, empty if none is set.
func (d *Document) Keyring() string {
	return d.KeyringPath
}

func (d *Document) merge(other *Document) {
	if other.KeyringPath != "" {
		d.KeyringPath = other.KeyringPath
	}
	if d.Remotes == nil {
		d.Remotes = map[string]RemoteCredentials{}
	}
	for name, remote := range other.Remotes {
		d.Remotes[name] = remote
	}
	d.Artifacts = append(d.Artifacts, other.Artifacts...)
}
