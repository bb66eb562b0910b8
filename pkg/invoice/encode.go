package invoice

import (
	"crypto/ecdsa"
	"fmt"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ionosphere-go/ionosphere/pkg/model"
)

// Params describes an invoice to Encode.
type Params struct {
	Prefix      string // currency prefix, defaults to "tb"
	Amount      *model.Msat
	Timestamp   time.Time
	Expiry      time.Duration
	PaymentHash [32]byte
	Description string
	// IncludePayee adds the n field instead of relying on key recovery.
	IncludePayee bool
}

// Encode builds and signs a BOLT11 payment request. It backs the fake
// broadcast API used in tests and local development.
func Encode(p Params, key *ecdsa.PrivateKey) (string, error) {
	if p.Prefix == "" {
		p.Prefix = "tb"
	}
	if _, ok := networks[p.Prefix]; !ok {
		return "", fmt.Errorf("unknown currency prefix %q", p.Prefix)
	}
	hrp := "ln" + p.Prefix
	if p.Amount != nil {
		hrp += formatAmount(*p.Amount)
	}

	body := uint64ToGroups(uint64(p.Timestamp.Unix()), timestampGroups)

	hash, err := bech32.ConvertBits(p.PaymentHash[:], 8, 5, true)
	if err != nil {
		return "", err
	}
	body = appendField(body, fieldPaymentHash, hash)

	if p.Description != "" {
		d, err := bech32.ConvertBits([]byte(p.Description), 8, 5, true)
		if err != nil {
			return "", err
		}
		body = appendField(body, fieldDescription, d)
	}

	if p.Expiry > 0 {
		body = appendField(body, fieldExpiry, uint64ToGroups(uint64(p.Expiry/time.Second), 0))
	}

	if p.IncludePayee {
		n, err := bech32.ConvertBits(crypto.CompressPubkey(&key.PublicKey), 8, 5, true)
		if err != nil {
			return "", err
		}
		body = appendField(body, fieldPayee, n)
	}

	digest, err := signingHash(hrp, body)
	if err != nil {
		return "", err
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return "", err
	}
	sigGroups, err := bech32.ConvertBits(sig, 8, 5, true)
	if err != nil {
		return "", err
	}

	return bech32.Encode(hrp, append(body, sigGroups...))
}

// formatAmount picks the shortest exact human-readable form.
func formatAmount(msat model.Msat) string {
	v := uint64(msat)
	switch {
	case v%100_000_000_000 == 0:
		return strconv.FormatUint(v/100_000_000_000, 10)
	case v%100_000_000 == 0:
		return strconv.FormatUint(v/100_000_000, 10) + "m"
	case v%100_000 == 0:
		return strconv.FormatUint(v/100_000, 10) + "u"
	case v%100 == 0:
		return strconv.FormatUint(v/100, 10) + "n"
	default:
		return strconv.FormatUint(v*10, 10) + "p"
	}
}

func appendField(body []byte, typ byte, value []byte) []byte {
	n := len(value)
	body = append(body, typ, byte(n>>5), byte(n&31))
	return append(body, value...)
}

// uint64ToGroups encodes v big-endian in 5-bit groups. With width 0 the
// minimal number of groups is used.
func uint64ToGroups(v uint64, width int) []byte {
	var groups []byte
	for v > 0 {
		groups = append([]byte{byte(v & 31)}, groups...)
		v >>= 5
	}
	for len(groups) < width {
		groups = append([]byte{0}, groups...)
	}
	if len(groups) == 0 {
		groups = []byte{0}
	}
	return groups
}
