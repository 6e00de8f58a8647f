package config_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/gkatanacio/artifact-fetcher/config"
	"github.com/gkatanacio/artifact-fetcher/download"
)

var (
	digestA = strings.Repeat("a", 64)
	digestB = strings.Repeat("B", 64)
	digestC = strings.Repeat("c", 64)
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

const modelsJSON = `{
  "artifacts": [
    {
      "name": "traced_Resnet152.pt",
      "url": "https://models.example.org/traced_Resnet152.pt",
      "sha256": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
      "path": "{build_dir}/models/traced_Resnet152.pt"
    }
  ]
}`

const libtorchYAML = `
remotes:
  internal:
    username: builder
    password: ${AFETCH_TEST_PASSWORD}
artifacts:
  - name: libtorch-Release.zip
    url: https://libs.example.org/libtorch-{platform}-{accel}.zip
    sha256: BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB
    path: "{third_party_dir}/libtorch/{build_type}/libtorch.zip"
    extract_to: "{third_party_dir}/libtorch/{build_type}"
    remote: internal
    variants:
      win/cuda:
        url: https://libs.example.org/libtorch-win-cu111.zip
        sha256: cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc
`

func Test_Load_Resolve(t *testing.T) {
	t.Setenv("AFETCH_TEST_PASSWORD", "s3cret")

	doc, err := config.Load(
		writeConfig(t, "config.json", modelsJSON),
		writeConfig(t, "install-config.yaml", libtorchYAML),
	)
	require.NoError(t, err)

	testCases := map[string]struct {
		selector  config.Selector
		wantURL   string
		wantSHA   string
		wantPath  string
		wantModel string
	}{
		"linux cpu": {
			selector:  config.Selector{Platform: "linux", BuildDir: "build", ThirdPartyDir: "3rdparty", BuildType: "Release"},
			wantURL:   "https://libs.example.org/libtorch-unix-cpu.zip",
			wantSHA:   strings.ToLower(digestB),
			wantPath:  filepath.Join("3rdparty", "libtorch", "Release", "libtorch.zip"),
			wantModel: filepath.Join("build", "models", "traced_Resnet152.pt"),
		},
		"windows cuda": {
			selector:  config.Selector{Platform: "win", GPU: true, BuildDir: "out", ThirdPartyDir: "deps", BuildType: "Debug"},
			wantURL:   "https://libs.example.org/libtorch-win-cu111.zip",
			wantSHA:   digestC,
			wantPath:  filepath.Join("deps", "libtorch", "Debug", "libtorch.zip"),
			wantModel: filepath.Join("out", "models", "traced_Resnet152.pt"),
		},
	}

	for scenario, tc := range testCases {
		t.Run(scenario, func(t *testing.T) {
			specs, err := doc.Resolve(tc.selector)
			require.NoError(t, err)
			require.Len(t, specs, 2)

			model := specs[0]
			assert.Equal(t, "traced_Resnet152.pt", model.Name)
			assert.Equal(t, digestA, model.ExpectedDigest)
			assert.Equal(t, tc.wantModel, model.DestinationPath)
			assert.Empty(t, model.ExtractionTargetDir)
			assert.Nil(t, model.Credentials)

			lib := specs[1]
			assert.Equal(t, tc.wantURL, lib.SourceURL)
			assert.Equal(t, tc.wantSHA, lib.ExpectedDigest)
			assert.Equal(t, tc.wantPath, lib.DestinationPath)
			assert.Equal(t, filepath.Dir(tc.wantPath), lib.ExtractionTargetDir)
			assert.Equal(t, &download.Credentials{Username: "builder", Password: "s3cret"}, lib.Credentials)
		})
	}
}

func Test_Load_LaterRemotesOverride(t *testing.T) {
	doc, err := config.Load(
		writeConfig(t, "a.yaml", "remotes:\n  internal:\n    username: old\n    password: old\n"),
		writeConfig(t, "b.yaml", "remotes:\n  internal:\n    username: new\n    password: new\nkeyring: keys.asc\n"),
	)
	require.NoError(t, err)

	assert.Equal(t, "new", doc.Remotes["internal"].Username)
	assert.Equal(t, "keys.asc", doc.Keyring())
}

func Test_Load_Failed(t *testing.T) {
	testCases := map[string]struct {
		paths func(t *testing.T) []string
	}{
		"no files": {
			paths: func(t *testing.T) []string { return nil },
		},
		"missing file": {
			paths: func(t *testing.T) []string {
				return []string{filepath.Join(t.TempDir(), "missing.json")}
			},
		},
		"malformed json": {
			paths: func(t *testing.T) []string {
				return []string{writeConfig(t, "broken.json", `{"artifacts": [`)}
			},
		},
		"unknown key": {
			paths: func(t *testing.T) []string {
				return []string{writeConfig(t, "typo.yaml", "artifactz: []\n")}
			},
		},
	}

	for scenario, tc := range testCases {
		t.Run(scenario, func(t *testing.T) {
			_, err := config.Load(tc.paths(t)...)
			assert.ErrorIs(t, err, config.ErrUnreadable)
		})
	}
}

func Test_Load_MissingFileKeepsCause(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.ErrorIs(t, err, config.ErrUnreadable)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.ErrorContains(t, err, "missing.yaml")
}

func Test_Resolve_Invalid(t *testing.T) {
	testCases := map[string]struct {
		doc     string
		wantMsg string
	}{
		"no artifacts": {
			doc:     "artifacts: []\n",
			wantMsg: "no artifacts",
		},
		"missing url": {
			doc:     "artifacts:\n  - name: a\n    sha256: " + digestA + "\n    path: a.bin\n",
			wantMsg: `"url"`,
		},
		"missing sha256": {
			doc:     "artifacts:\n  - name: a\n    url: http://x/a\n    path: a.bin\n",
			wantMsg: `"sha256"`,
		},
		"missing path": {
			doc:     "artifacts:\n  - name: a\n    url: http://x/a\n    sha256: " + digestA + "\n",
			wantMsg: `"path"`,
		},
		"short digest": {
			doc:     "artifacts:\n  - name: a\n    url: http://x/a\n    sha256: abc\n    path: a.bin\n",
			wantMsg: "not a hex-encoded",
		},
		"undefined remote": {
			doc:     "artifacts:\n  - name: a\n    url: http://x/a\n    sha256: " + digestA + "\n    path: a.bin\n    remote: nowhere\n",
			wantMsg: `remote "nowhere" is not defined`,
		},
		"signature without keyring": {
			doc:     "artifacts:\n  - name: a\n    url: http://x/a\n    sha256: " + digestA + "\n    path: a.bin\n    signature_url: http://x/a.asc\n",
			wantMsg: "requires a keyring",
		},
		"unknown variant": {
			doc:     "artifacts:\n  - name: a\n    url: http://x/a\n    sha256: " + digestA + "\n    path: a.bin\n    variants:\n      linux/cuda:\n        url: http://x/a-cuda\n",
			wantMsg: `unknown variant "linux/cuda"`,
		},
	}

	for scenario, tc := range testCases {
		t.Run(scenario, func(t *testing.T) {
			doc, err := config.Parse(strings.NewReader(tc.doc))
			require.NoError(t, err)

			specs, err := doc.Resolve(config.Selector{Platform: "linux"})
			assert.Nil(t, specs)
			assert.ErrorIs(t, err, config.ErrInvalid)
			assert.ErrorContains(t, err, tc.wantMsg)
		})
	}
}

func Test_Resolve_KeyringPassword(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set("afetch", "builder", "from-keyring"))

	doc, err := config.Parse(strings.NewReader(`
remotes:
  internal:
    username: builder
    keyring_service: afetch
  missing:
    username: nobody
    keyring_service: afetch
artifacts:
  - name: a
    url: http://x/a
    sha256: ` + digestA + `
    path: a.bin
    remote: internal
`))
	require.NoError(t, err)

	specs, err := doc.Resolve(config.Selector{Platform: "linux"})
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "from-keyring", specs[0].Credentials.Password)

	doc.Artifacts[0].Remote = "missing"
	_, err = doc.Resolve(config.Selector{Platform: "linux"})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func Test_Selector_Variant(t *testing.T) {
	assert.Equal(t, "unix/cpu", config.Selector{Platform: "linux"}.Variant())
	assert.Equal(t, "unix/cuda", config.Selector{Platform: "darwin", GPU: true}.Variant())
	assert.Equal(t, "win/cpu", config.Selector{Platform: "Windows"}.Variant())
	assert.Equal(t, "win/cuda", config.Selector{Platform: "win", GPU: true}.Variant())
}
