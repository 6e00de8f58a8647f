package download

import (
	"io"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gkatanacio/artifact-fetcher/checksum"
	"github.com/gkatanacio/artifact-fetcher/unpack"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrSignature        = errors.New("signature check failed")
	ErrNoVerifier       = errors.New("artifact is signed but no keyring is configured")
)

const (
	DefaultChunkSize = 64 * 1024
	DefaultUserAgent = "afetch"

	suffixOngoingDownload = ".download"
	suffixSignature       = ".sig"
	maxSignatureSize      = 10 * 1024

	unauthorizedHint = "check the username and password configured for this artifact's remote"
)

// Service is the service layer that contains operations for fetching,
// verifying and unpacking artifacts.
type Service struct {
	opts       Options
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewService creates a service sending its requests through httpClient.
// A nil logger discards all log output.
func NewService(opts Options, httpClient *http.Client, logger logrus.FieldLogger) *Service {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}

	return &Service{
		opts:       opts,
		httpClient: httpClient,
		log:        logger,
	}
}

// Run processes every artifact in order. A failing artifact never stops the
// run, so the returned report surfaces every problem at once.
func (s *Service) Run(specs []ArtifactSpec) *Report {
	report := &Report{}
	for _, spec := range specs {
		report.Results = append(report.Results, s.Process(spec))
	}

	return report
}

// Process fetches a single artifact, verifies whatever ends up on disk and,
// when configured, checks its signature and extracts it.
// Verification always runs, even after a failed download, so a stale or
// corrupt file is reported; a failed download is never reported as verified.
func (s *Service) Process(spec ArtifactSpec) Result {
	log := s.log.WithField("artifact", spec.Name)
	log.Info("processing")

	result := s.fetch(spec)

	ok, err := checksum.Verify(spec.DestinationPath, spec.ExpectedDigest)
	pathLog := log.WithField("path", spec.DestinationPath)
	switch {
	case err != nil:
		pathLog.WithError(err).Error("checksum could not be computed")
	case !ok:
		pathLog.Error("checksum mismatch")
	default:
		pathLog.Info("checksum OK")
	}

	if !result.Outcome.Verified() {
		return result
	}

	if !ok {
		result.Outcome = ChecksumMismatch
		result.Err = err
		if result.Err == nil {
			result.Err = errors.Wrapf(ErrChecksumMismatch, "%s", spec.DestinationPath)
		}
		return result
	}

	if spec.SignatureURL != "" {
		if err := s.checkSignature(spec); err != nil {
			log.WithError(err).WithField("url", spec.SignatureURL).Error("signature invalid")
			result.Outcome = SignatureInvalid
			result.Err = err
			return result
		}
		log.Info("signature OK")
	}

	if spec.ExtractionTargetDir != "" {
		s.extract(spec, &result)
	}

	return result
}

// fetch performs the network stage for a single artifact. An existing
// regular file at the destination short-circuits the request.
// The Verified outcomes returned here only mean the file is on disk;
// Process confirms or downgrades them after hashing.
func (s *Service) fetch(spec ArtifactSpec) Result {
	result := Result{Spec: spec}
	log := s.log.WithFields(logrus.Fields{
		"artifact": spec.Name,
		"path":     spec.DestinationPath,
	})

	if isRegularFile(spec.DestinationPath) {
		log.Info("already present")
		result.Outcome = AlreadyPresentVerified
		return result
	}

	log = log.WithField("url", spec.SourceURL)
	log.Info("downloading")

	resp, err := s.get(spec.SourceURL, spec.Credentials)
	if resp != nil {
		result.StatusCode = resp.StatusCode
	}
	if err != nil {
		result.Err = err
		if errors.Is(err, ErrUnauthorized) {
			result.Outcome = Unauthorized
			log.WithError(err).Errorf("download unauthorized: %s", unauthorizedHint)
		} else {
			result.Outcome = DownloadFailed
			log.WithError(err).Error("download failed")
		}
		return result
	}
	defer resp.Body.Close()

	written, err := writeStream(spec.DestinationPath, resp.Body, s.opts.ChunkSize)
	if err != nil {
		result.Outcome = DownloadFailed
		result.Err = err
		log.WithError(err).Error("download failed")
		return result
	}

	log.WithField("bytes", written).Info("downloaded")
	result.Outcome = DownloadedVerified

	return result
}

// get issues a GET request and returns the response only for a 200 status.
// For any other status the body is closed and the response is still returned
// so that callers can record the status code.
func (s *Service) get(url string, creds *Credentials) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %s", url)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	if creds != nil {
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", url)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusUnauthorized:
		resp.Body.Close()
		return resp, errors.Wrapf(ErrUnauthorized, "received %d response from %s", resp.StatusCode, url)
	default:
		resp.Body.Close()
		return resp, errors.Wrapf(ErrUnexpectedStatus, "received %d response from %s", resp.StatusCode, url)
	}
}

// checkSignature verifies the artifact against its detached signature. The
// signature is kept next to the artifact so that later runs verify offline;
// a copy that fails verification is removed and fetched again next time.
func (s *Service) checkSignature(spec ArtifactSpec) error {
	if s.opts.Signatures == nil {
		return ErrNoVerifier
	}

	sigPath := spec.DestinationPath + suffixSignature
	if !isRegularFile(sigPath) {
		resp, err := s.get(spec.SignatureURL, spec.Credentials)
		if err != nil {
			return errors.Wrap(err, "fetching signature")
		}
		_, err = writeStream(sigPath, io.LimitReader(resp.Body, maxSignatureSize), s.opts.ChunkSize)
		resp.Body.Close()
		if err != nil {
			return errors.Wrap(err, "saving signature")
		}
	}

	sig, err := os.Open(sigPath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", sigPath)
	}
	err = s.opts.Signatures.Verify(spec.DestinationPath, sig)
	sig.Close()
	if err != nil {
		os.Remove(sigPath)
		return errors.Wrapf(ErrSignature, "%s: %v", spec.SignatureURL, err)
	}

	return nil
}

func (s *Service) extract(spec ArtifactSpec, result *Result) {
	log := s.log.WithFields(logrus.Fields{
		"artifact": spec.Name,
		"target":   spec.ExtractionTargetDir,
	})

	if !unpack.IsZip(spec.DestinationPath) {
		log.Warn("not a zip archive, skipping extraction")
		return
	}

	log.Info("extracting")
	written, err := unpack.Zip(spec.DestinationPath, spec.ExtractionTargetDir)
	result.Extracted = written
	if err != nil {
		log.WithError(err).Error("extraction failed")
		result.Outcome = ExtractionFailed
		result.Err = errors.Wrapf(err, "extracting %s", spec.DestinationPath)
		return
	}

	log.WithField("files", len(written)).Info("extracted")
}
