package download

import (
	"io"
)

// Options represents the configuration for the download service.
type Options struct {
	// ChunkSize is the size of the buffer used when streaming response
	// bodies to disk. Defaults to DefaultChunkSize.
	ChunkSize int
	UserAgent string
	// Signatures checks detached signatures of artifacts that declare a
	// SignatureURL. May be nil when no artifact is signed.
	Signatures SignatureVerifier
}

// SignatureVerifier checks a detached signature of a file on disk.
type SignatureVerifier interface {
	Verify(filePath string, sig io.Reader) error
}

// Credentials is a username/password pair sent as HTTP Basic Authentication.
type Credentials struct {
	Username string
	Password string
}

// ArtifactSpec identifies one downloadable unit.
type ArtifactSpec struct {
	Name            string
	SourceURL       string
	DestinationPath string
	// ExpectedDigest is the hex-encoded SHA-256 of the artifact.
	ExpectedDigest string
	// ExtractionTargetDir is where a zip artifact gets unpacked. Empty
	// means no extraction.
	ExtractionTargetDir string
	Credentials         *Credentials
	SignatureURL        string
}

// Outcome is the result kind of processing one ArtifactSpec.
type Outcome int

const (
	AlreadyPresentVerified Outcome = iota
	DownloadedVerified
	ChecksumMismatch
	DownloadFailed
	Unauthorized
	ExtractionFailed
	SignatureInvalid
)

var outcomeNames = map[Outcome]string{
	AlreadyPresentVerified: "AlreadyPresentVerified",
	DownloadedVerified:     "DownloadedVerified",
	ChecksumMismatch:       "ChecksumMismatch",
	DownloadFailed:         "DownloadFailed",
	Unauthorized:           "Unauthorized",
	ExtractionFailed:       "ExtractionFailed",
	SignatureInvalid:       "SignatureInvalid",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "Unknown"
}

// Verified reports whether the artifact is ready for use.
func (o Outcome) Verified() bool {
	return o == AlreadyPresentVerified || o == DownloadedVerified
}

// DownloadFailure reports whether the artifact could not be retrieved.
func (o Outcome) DownloadFailure() bool {
	return o == DownloadFailed || o == Unauthorized
}

// Result is the outcome of processing one ArtifactSpec.
type Result struct {
	Spec    ArtifactSpec
	Outcome Outcome
	// StatusCode is the HTTP status of the download response, zero when no
	// request was made or no response was received.
	StatusCode int
	// Err is the cause of a non-verified outcome.
	Err error
	// Extracted lists the files written by archive extraction.
	Extracted []string
}
