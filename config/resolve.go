package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/zalando/go-keyring"

	"github.com/gkatanacio/artifact-fetcher/download"
)

// Selector picks the artifact variants and fills the path placeholders.
type Selector struct {
	// Platform is the target OS. "win" and "windows" select Windows
	// variants, anything else selects unix ones.
	Platform string
	// GPU selects CUDA-accelerated variants.
	GPU           bool
	BuildDir      string
	ThirdPartyDir string
	BuildType     string
}

func (s Selector) platform() string {
	switch strings.ToLower(s.Platform) {
	case "win", "windows":
		return "win"
	default:
		return "unix"
	}
}

func (s Selector) accel() string {
	if s.GPU {
		return "cuda"
	}
	return "cpu"
}

// Variant returns the key used to look up artifact variants, e.g. "unix/cpu".
func (s Selector) Variant() string {
	return s.platform() + "/" + s.accel()
}

// variantKeys lists every selector a variant may be declared for.
var variantKeys = map[string]bool{
	"win/cpu":   true,
	"win/cuda":  true,
	"unix/cpu":  true,
	"unix/cuda": true,
}

func (s Selector) replacer() *strings.Replacer {
	return strings.NewReplacer(
		"{platform}", s.platform(),
		"{accel}", s.accel(),
		"{build_dir}", s.BuildDir,
		"{third_party_dir}", s.ThirdPartyDir,
		"{build_type}", s.BuildType,
	)
}

// Resolve turns the document into the ordered list of artifacts for the
// selector. Every problem found is reported and no partial list is returned.
func (d *Document) Resolve(sel Selector) ([]download.ArtifactSpec, error) {
	var merr *multierror.Error
	invalid := func(format string, args ...interface{}) {
		merr = multierror.Append(merr, errors.Wrapf(ErrInvalid, format, args...))
	}

	if len(d.Artifacts) == 0 {
		invalid("no artifacts defined")
	}

	repl := sel.replacer()
	specs := make([]download.ArtifactSpec, 0, len(d.Artifacts))
	for i, art := range d.Artifacts {
		label := art.Name
		if label == "" {
			label = "#" + strconv.Itoa(i)
		}

		keys := make([]string, 0, len(art.Variants))
		for key := range art.Variants {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if !variantKeys[key] {
				invalid("artifact %s: unknown variant %q, expected one of win/cpu, win/cuda, unix/cpu, unix/cuda", label, key)
			}
		}

		url, digest := art.URL, art.SHA256
		if v, ok := art.Variants[sel.Variant()]; ok {
			if v.URL != "" {
				url = v.URL
			}
			if v.SHA256 != "" {
				digest = v.SHA256
			}
		}

		required := []struct{ key, value string }{
			{"name", art.Name},
			{"url", url},
			{"sha256", digest},
			{"path", art.Path},
		}
		for _, r := range required {
			if r.value == "" {
				invalid("artifact %s: missing required key %q for %s", label, r.key, sel.Variant())
			}
		}
		if digest != "" && !isSHA256(digest) {
			invalid("artifact %s: sha256 %q is not a hex-encoded SHA-256 digest", label, digest)
		}
		if art.SignatureURL != "" && d.KeyringPath == "" {
			invalid("artifact %s: signature_url requires a keyring", label)
		}

		spec := download.ArtifactSpec{
			Name:            art.Name,
			SourceURL:       repl.Replace(url),
			DestinationPath: cleanPath(repl.Replace(art.Path)),
			ExpectedDigest:  strings.ToLower(digest),
			SignatureURL:    repl.Replace(art.SignatureURL),
		}
		if art.ExtractTo != "" {
			spec.ExtractionTargetDir = cleanPath(repl.Replace(art.ExtractTo))
		}

		if art.Remote != "" {
			creds, err := d.credentials(art.Remote)
			if err != nil {
				invalid("artifact %s: %v", label, err)
			}
			spec.Credentials = creds
		}

		specs = append(specs, spec)
	}

	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}

	return specs, nil
}

// credentials looks up the named remote and resolves its password.
func (d *Document) credentials(name string) (*download.Credentials, error) {
	remote, ok := d.Remotes[name]
	if !ok {
		return nil, errors.Errorf("remote %q is not defined", name)
	}

	creds := &download.Credentials{
		Username: os.ExpandEnv(remote.Username),
		Password: os.ExpandEnv(remote.Password),
	}
	if creds.Username == "" {
		return nil, errors.Errorf("remote %q has no username", name)
	}

	if creds.Password == "" && remote.KeyringService != "" {
		secret, err := keyring.Get(remote.KeyringService, creds.Username)
		if err != nil {
			return nil, errors.Wrapf(err, "remote %q: reading password from keyring service %q", name, remote.KeyringService)
		}
		creds.Password = secret
	}

	return creds, nil
}

func isSHA256(digest string) bool {
	raw, err := hex.DecodeString(digest)
	return err == nil && len(raw) == 32
}

func cleanPath(path string) string {
	return filepath.Clean(filepath.FromSlash(path))
}
