package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Network is the bitcoin network the API's lightning node runs on.
type Network string

const (
	Main    Network = "main"
	Test    Network = "test"
	Regtest Network = "regtest"
)

// ParseNetwork accepts the spellings used by lightning implementations
// ("bitcoin", "mainnet", "testnet", ...) and normalizes them.
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(s) {
	case "main", "mainnet", "bitcoin":
		return Main, nil
	case "test", "testnet":
		return Test, nil
	case "regtest":
		return Regtest, nil
	default:
		return "", fmt.Errorf("unknown network %q", s)
	}
}

// UnmarshalJSON decodes a network name with ParseNetwork.
func (n *Network) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseNetwork(s)
	if err != nil {
		return err
	}
	*n = v
	return nil
}

// NodeAddress is one advertised address of the API's lightning node.
type NodeAddress struct {
	// Type is the address kind: ipv4, ipv6, torv2, torv3 or dns.
	Type string `json:"type"`
	// Address is the IP, hostname or hidden service name.
	Address string `json:"address"`
	Port    uint16 `json:"port"`
}

// HostPort formats the address as host:port, bracketing IPv6 literals.
func (a NodeAddress) HostPort() string {
	return net.JoinHostPort(a.Address, strconv.Itoa(int(a.Port)))
}

// NodeDescriptor describes the API's lightning node. It is fetched fresh on
// every query and never cached by the client.
type NodeDescriptor struct {
	ID          string        `json:"id"`
	Addresses   []NodeAddress `json:"address"`
	Version     string        `json:"version"`
	BlockHeight uint64        `json:"blockheight"`
	Network     Network       `json:"network"`
}

// PreferredAddress returns the first advertised address. ok is false when the
// node advertises none and must be found through gossip.
func (n *NodeDescriptor) PreferredAddress() (addr NodeAddress, ok bool) {
	if len(n.Addresses) == 0 {
		return NodeAddress{}, false
	}
	return n.Addresses[0], true
}

// Order is the handle needed to manipulate a bid after placing it. It is only
// handed out once the bid's invoice has been paid.
type Order struct {
	UUID      string `json:"uuid"`
	AuthToken string `json:"auth_token"`
}

// String omits the auth token, which must be kept secret.
func (o Order) String() string {
	return "order " + o.UUID
}

// Validate checks that the order id and token are present. Ids are opaque;
// ones that are not UUIDs are only noted at debug level.
func (o Order) Validate() error {
	if o.UUID == "" {
		return errors.New("order id is empty")
	}
	if _, err := uuid.Parse(o.UUID); err != nil {
		zap.L().Debug("order id is not a UUID", zap.String("uuid", o.UUID))
	}
	if o.AuthToken == "" {
		return fmt.Errorf("order %s: missing auth token", o.UUID)
	}
	return nil
}
