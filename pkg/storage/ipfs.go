package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ipfs/go-cid"
	"github.com/ipfs/kubo/client/rpc"
	"go.uber.org/zap"
)

// ipfsFetcher is the concrete implementation of IPFSFetcher using Kubo HTTP API.
type ipfsFetcher struct {
	api *rpc.HttpApi
}

func newIPFSFetcher(api *rpc.HttpApi) IPFSFetcher {
	return &ipfsFetcher{api: api}
}

// Open streams content by CID through `ipfs cat`. The returned reader is the
// live response body; closing it releases the request.
func (f *ipfsFetcher) Open(ctx context.Context, c cid.Cid) (io.ReadCloser, error) {
	if f.api == nil {
		return nil, errors.New("ipfs client not configured")
	}

	zap.L().Debug("reading from IPFS", zap.String("cid", c.String()))
	resp, err := f.api.Request("cat", c.String()).Send(ctx)
	if err != nil {
		zap.L().Error("error executing the cat command in ipfs", zap.String("cid", c.String()), zap.Error(err))
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("ipfs cat: %w", resp.Error)
	}
	return resp.Output, nil
}

// NewIPFSClient constructs a Kubo HTTP API client pointed at url.
func NewIPFSClient(url string, httpClient *http.Client) (*rpc.HttpApi, error) {
	client, err := rpc.NewURLApiWithClient(url, httpClient)
	if err != nil {
		zap.L().Error("Connection failed to IPFS", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("ipfs client %s: %w", url, err)
	}
	return client, nil
}
