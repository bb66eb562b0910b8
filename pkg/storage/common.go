package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"
)

const (
	// IpfsPrefix is the URI scheme prefix recognized for IPFS content.
	IpfsPrefix = "ipfs://"
	// FilecoinPrefix is the URI scheme prefix recognized for Filecoin/Lighthouse content.
	FilecoinPrefix = "filecoin://"
)

// ErrNoFileName is returned when a local path has no usable final element.
var ErrNoFileName = errors.New("path has no file name")

// Source is an opened upload source. The caller must Close it.
type Source struct {
	// Name is the file name announced to the broadcast API.
	Name string
	io.ReadCloser
}

// LighthouseFetcher opens content from a Lighthouse gateway.
type LighthouseFetcher interface {
	Open(ctx context.Context, endpoint, cid string) (io.ReadCloser, error)
}

// IPFSFetcher opens content addressed by CID from IPFS.
type IPFSFetcher interface {
	Open(ctx context.Context, c cid.Cid) (io.ReadCloser, error)
}

// Client aggregates the configured storage backends.
type Client struct {
	lighthouseURL     string
	lighthouseFetcher LighthouseFetcher
	ipfsFetcher       IPFSFetcher
}

// NewStorage constructs a Client using the provided IPFS API endpoint and
// Lighthouse gateway URL. timeout bounds a whole transfer, body included;
// zero means no limit.
func NewStorage(ipfsURL, lighthouseURL string, timeout time.Duration) (*Client, error) {
	httpClient := &http.Client{Timeout: timeout}
	api, err := NewIPFSClient(ipfsURL, httpClient)
	if err != nil {
		return nil, err
	}
	return &Client{
		lighthouseURL:     lighthouseURL,
		lighthouseFetcher: lighthouseFetcher{http: httpClient},
		ipfsFetcher:       newIPFSFetcher(api),
	}, nil
}

// IsRemote reports whether ref names IPFS or Filecoin content rather than a
// local path.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, IpfsPrefix) || strings.HasPrefix(ref, FilecoinPrefix)
}

// Open resolves ref and returns a stream over its content. "filecoin://CID"
// is fetched through the Lighthouse gateway, "ipfs://CID" through the Kubo
// API, anything else is opened as a local file. Remote sources are named
// after their CID.
func (s *Client) Open(ctx context.Context, ref string) (*Source, error) {
	if !IsRemote(ref) {
		return OpenFile(ref)
	}

	c, err := parseCID(ref)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("opening remote source", zap.String("ref", ref), zap.Uint64("cid_version", c.Version()))

	var rc io.ReadCloser
	if strings.HasPrefix(ref, FilecoinPrefix) {
		if s.lighthouseFetcher == nil {
			return nil, errors.New("lighthouse gateway not configured")
		}
		rc, err = s.lighthouseFetcher.Open(ctx, s.lighthouseURL, c.String())
	} else {
		if s.ipfsFetcher == nil {
			return nil, errors.New("ipfs client not configured")
		}
		rc, err = s.ipfsFetcher.Open(ctx, c)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	return &Source{Name: c.String(), ReadCloser: rc}, nil
}

// OpenFile opens a local file. The file name is the final element of path;
// paths without one ("", ".", "/", "..") yield ErrNoFileName.
func OpenFile(path string) (*Source, error) {
	name, err := FileName(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Source{Name: name, ReadCloser: f}, nil
}

// FileName returns the final element of path or ErrNoFileName.
func FileName(path string) (string, error) {
	if path == "" || strings.HasSuffix(path, string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrNoFileName, path)
	}
	name := filepath.Base(path)
	switch name {
	case ".", "..", string(filepath.Separator):
		return "", fmt.Errorf("%w: %q", ErrNoFileName, path)
	}
	return name, nil
}

// parseCID strips the scheme prefix and any trailing path and parses the CID.
func parseCID(ref string) (cid.Cid, error) {
	hash := strings.TrimPrefix(strings.TrimPrefix(ref, IpfsPrefix), FilecoinPrefix)
	if i := strings.IndexByte(hash, '/'); i >= 0 {
		hash = hash[:i]
	}
	c, err := cid.Parse(hash)
	if err != nil {
		zap.L().Debug("invalid content identifier", zap.String("ref", ref), zap.Error(err))
		return cid.Undef, fmt.Errorf("invalid content identifier in %q: %w", ref, err)
	}
	return c, nil
}
