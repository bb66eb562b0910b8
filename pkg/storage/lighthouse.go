package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

type lighthouseFetcher struct {
	http *http.Client
}

func (f lighthouseFetcher) Open(ctx context.Context, endpoint, cid string) (io.ReadCloser, error) {
	return OpenLighthouseFile(ctx, f.http, endpoint, cid)
}

// OpenLighthouseFile streams a blob from a Lighthouse HTTP gateway.
//
// The CID is appended directly to lighthouseEndpoint, so the endpoint should
// end with a slash (e.g. "https://gateway.lighthouse.storage/ipfs/").
// Any status other than 200 is an error.
func OpenLighthouseFile(ctx context.Context, client *http.Client, lighthouseEndpoint, cid string) (io.ReadCloser, error) {
	if client == nil {
		client = http.DefaultClient
	}
	zap.L().Debug("Getting lighthouse file", zap.String("cid", cid))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lighthouseEndpoint+cid, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("lighthouse gateway returned %s for %s", resp.Status, cid)
	}
	return resp.Body, nil
}
