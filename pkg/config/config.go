package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

const (
	// BlockstreamMainnet is the Blockstream Satellite API on bitcoin mainnet.
	BlockstreamMainnet = "https://api.blockstream.space/"
	// BlockstreamTestnet is the Blockstream Satellite API on bitcoin testnet.
	BlockstreamTestnet = "https://api.blockstream.space/testnet/"
)

// Config holds all settings required to build a broadcast client.
// Use Validate to fill implicit defaults and to check for required fields.
type Config struct {
	// APIEndpoint is the base URL of the broadcast-ordering API. It must be
	// absolute; a trailing slash is added when missing.
	// Default: BlockstreamTestnet
	APIEndpoint string `json:"api_endpoint" yaml:"api_endpoint"`
	// Lightning configures the connection to the local payment node (required).
	Lightning Lightning `json:"lightning" yaml:"lightning"`
	// IpfsURL is the HTTP API endpoint of the IPFS node used to read upload sources.
	// Default: http://127.0.0.1:5001
	IpfsURL string `json:"ipfs_url" yaml:"ipfs_url"`
	// LighthouseURL is the HTTP gateway used to fetch Filecoin-backed content.
	// Default: https://gateway.lighthouse.storage/ipfs/
	LighthouseURL string `json:"lighthouse_url" yaml:"lighthouse_url"`
	// Debug enables verbose logging.
	Debug bool `json:"debug" yaml:"debug"`
	// Timeouts configures transport timeouts. See Timeouts.WithDefaults for defaults.
	Timeouts Timeouts `json:"timeouts" yaml:"timeouts"`
}

// Lightning describes how to reach the Core Lightning gRPC interface.
// When all three certificate paths are set the connection uses mutual TLS,
// otherwise the address scheme decides (see grpc.NewClient).
type Lightning struct {
	GRPCAddr   string `json:"grpc_addr" yaml:"grpc_addr"`
	CACert     string `json:"ca_cert" yaml:"ca_cert"`
	ClientCert string `json:"client_cert" yaml:"client_cert"`
	ClientKey  string `json:"client_key" yaml:"client_key"`
}

// MutualTLS reports whether every certificate path is configured.
func (l Lightning) MutualTLS() bool {
	return l.CACert != "" && l.ClientCert != "" && l.ClientKey != ""
}

// Timeouts bounds the underlying transports. The order protocol itself has no
// timeout of its own. Zero values will be replaced by defaults in WithDefaults.
type Timeouts struct {
	HTTP    time.Duration `json:"http" yaml:"http"`       // info / cancel round trips
	Upload  time.Duration `json:"upload" yaml:"upload"`   // order POST including the file body
	Dial    time.Duration `json:"dial" yaml:"dial"`       // lightning gRPC connect
	Payment time.Duration `json:"payment" yaml:"payment"` // lightning pay / fundchannel
}

// Validate normalizes the configuration by applying implicit defaults for
// APIEndpoint, IpfsURL and LighthouseURL, and verifies that the endpoint is a
// well-formed absolute URL and that a Lightning address is provided.
func (c *Config) Validate() error {
	if c.APIEndpoint == "" {
		c.APIEndpoint = BlockstreamTestnet
	}

	if c.IpfsURL == "" {
		c.IpfsURL = "http://127.0.0.1:5001"
	}

	if c.LighthouseURL == "" {
		c.LighthouseURL = "https://gateway.lighthouse.storage/ipfs/"
	}

	u, err := url.Parse(c.APIEndpoint)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("api endpoint %q is not an absolute URL", c.APIEndpoint)
	}

	if c.Lightning.GRPCAddr == "" {
		return errors.New("lightning gRPC address is required")
	}

	return nil
}

// WithDefaults returns a copy of t with zero values replaced by defaults:
//
//	HTTP:    30s
//	Upload:  10m
//	Dial:    5s
//	Payment: 120s
func (t Timeouts) WithDefaults() Timeouts {
	tt := t
	if tt.HTTP == 0 {
		tt.HTTP = 30 * time.Second
	}
	if tt.Upload == 0 {
		tt.Upload = 10 * time.Minute
	}
	if tt.Dial == 0 {
		tt.Dial = 5 * time.Second
	}
	if tt.Payment == 0 {
		tt.Payment = 120 * time.Second
	}
	return tt
}

// Environment variables consulted by Load. They take precedence over the file.
const (
	EnvAPIEndpoint   = "IONOSPHERE_API"
	EnvLightningAddr = "IONOSPHERE_LIGHTNING_GRPC"
	EnvLightningCA   = "IONOSPHERE_LIGHTNING_CA"
	EnvLightningCert = "IONOSPHERE_LIGHTNING_CERT"
	EnvLightningKey  = "IONOSPHERE_LIGHTNING_KEY"
	EnvIpfsURL       = "IONOSPHERE_IPFS_URL"
	EnvLighthouseURL = "IONOSPHERE_LIGHTHOUSE_URL"
	EnvDebug         = "IONOSPHERE_DEBUG"
)

// Load reads a YAML configuration file (when path is non-empty), loads an
// optional .env file from the working directory and overlays the IONOSPHERE_*
// environment variables. The result is validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		zap.L().Warn("failed to load .env file", zap.Error(err))
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Timeouts = cfg.Timeouts.WithDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	overlay := map[string]*string{
		EnvAPIEndpoint:   &c.APIEndpoint,
		EnvLightningAddr: &c.Lightning.GRPCAddr,
		EnvLightningCA:   &c.Lightning.CACert,
		EnvLightningCert: &c.Lightning.ClientCert,
		EnvLightningKey:  &c.Lightning.ClientKey,
		EnvIpfsURL:       &c.IpfsURL,
		EnvLighthouseURL: &c.LighthouseURL,
	}
	for key, dst := range overlay {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv(EnvDebug); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebug, err)
		}
		c.Debug = debug
	}
	return nil
}
