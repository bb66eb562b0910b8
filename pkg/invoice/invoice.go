// Package invoice decodes BOLT11 lightning payment requests far enough to
// check what the broadcast API is asking to be paid: the embedded amount,
// the validity window, the payment hash and the payee node.
package invoice

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ionosphere-go/ionosphere/pkg/model"
	"github.com/shopspring/decimal"
)

// ErrInvalid is wrapped by every decoding error.
var ErrInvalid = errors.New("invalid payment request")

const (
	// DefaultExpiry applies when the invoice carries no expiry field.
	DefaultExpiry = time.Hour
	// DefaultMinFinalCLTV applies when the invoice carries no c field.
	DefaultMinFinalCLTV = 18

	timestampGroups = 7
	signatureGroups = 104
	hashGroups      = 52
	pubkeyGroups    = 53
)

// Tagged field types.
const (
	fieldPaymentHash     = 1
	fieldDescription     = 13
	fieldPayee           = 19
	fieldDescriptionHash = 23
	fieldExpiry          = 6
	fieldMinFinalCLTV    = 24
	fieldPaymentSecret   = 16
)

// Known currency prefixes following "ln" in the human-readable part.
var networks = map[string]model.Network{
	"bc":   model.Main,
	"tb":   model.Test,
	"tbs":  model.Test,
	"bcrt": model.Regtest,
	"sb":   model.Regtest,
}

// Invoice is a decoded, signature-checked BOLT11 payment request.
type Invoice struct {
	// Prefix is the currency prefix, e.g. "bc" or "tb".
	Prefix          string
	Network         model.Network
	Timestamp       time.Time
	Expiry          time.Duration
	PaymentHash     [32]byte
	PaymentSecret   *[32]byte
	Description     string
	DescriptionHash *[32]byte
	MinFinalCLTV    uint64
	// Payee is the compressed public key of the node that signed the invoice.
	Payee []byte

	amount *model.Msat
	raw    string
}

// Amount returns the embedded amount. ok is false for "any amount" invoices.
func (i *Invoice) Amount() (amount model.Msat, ok bool) {
	if i.amount == nil {
		return 0, false
	}
	return *i.amount, true
}

// ExpiresAt is the end of the invoice's validity window.
func (i *Invoice) ExpiresAt() time.Time {
	return i.Timestamp.Add(i.Expiry)
}

// Expired reports whether the validity window has closed at now.
func (i *Invoice) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt())
}

// PayeeHex returns the payee node id in the hex form used by node RPCs.
func (i *Invoice) PayeeHex() string {
	return hex.EncodeToString(i.Payee)
}

// String returns the payment request as it was decoded.
func (i *Invoice) String() string {
	return i.raw
}

// Decode parses a BOLT11 payment request, verifies its checksum and
// signature and recovers the payee when no n field is present. A
// "lightning:" URI prefix is accepted.
func Decode(payReq string) (*Invoice, error) {
	s := strings.TrimSpace(payReq)
	if len(s) > 10 && strings.EqualFold(s[:10], "lightning:") {
		s = s[10:]
	}

	hrp, data, err := bech32.DecodeNoLimit(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !strings.HasPrefix(hrp, "ln") {
		return nil, fmt.Errorf("%w: prefix %q is not a lightning invoice", ErrInvalid, hrp)
	}
	if len(data) < timestampGroups+signatureGroups {
		return nil, fmt.Errorf("%w: data part too short", ErrInvalid)
	}

	inv := &Invoice{
		Expiry:       DefaultExpiry,
		MinFinalCLTV: DefaultMinFinalCLTV,
		raw:          s,
	}

	if err := inv.parseHRP(hrp[2:]); err != nil {
		return nil, err
	}

	body := data[:len(data)-signatureGroups]
	inv.Timestamp = time.Unix(int64(base32ToUint64(body[:timestampGroups])), 0).UTC()

	var hasHash bool
	if hasHash, err = inv.parseFields(body[timestampGroups:]); err != nil {
		return nil, err
	}
	if !hasHash {
		return nil, fmt.Errorf("%w: missing payment hash", ErrInvalid)
	}

	if err := inv.checkSignature(hrp, body, data[len(data)-signatureGroups:]); err != nil {
		return nil, err
	}
	return inv, nil
}

// parseHRP splits "bc2500u" into currency prefix and amount.
func (i *Invoice) parseHRP(rest string) error {
	split := strings.IndexAny(rest, "0123456789")
	prefix, amt := rest, ""
	if split >= 0 {
		prefix, amt = rest[:split], rest[split:]
	}

	network, ok := networks[prefix]
	if !ok {
		return fmt.Errorf("%w: unknown currency prefix %q", ErrInvalid, prefix)
	}
	i.Prefix = prefix
	i.Network = network

	if amt == "" {
		return nil
	}
	msat, err := parseAmount(amt)
	if err != nil {
		return err
	}
	i.amount = &msat
	return nil
}

// multipliers maps an amount suffix to the power of ten applied to the
// bitcoin value.
var multipliers = map[byte]int32{
	'm': -3,
	'u': -6,
	'n': -9,
	'p': -12,
}

// parseAmount converts the human-readable amount to millisatoshis exactly.
// One bitcoin is 10^11 msat, so a pico-bitcoin amount must end in 0.
func parseAmount(amt string) (model.Msat, error) {
	exp := int32(0)
	digits := amt
	if m, ok := multipliers[amt[len(amt)-1]]; ok {
		exp = m
		digits = amt[:len(amt)-1]
	}
	if digits == "" || strings.Trim(digits, "0123456789") != "" {
		return 0, fmt.Errorf("%w: malformed amount %q", ErrInvalid, amt)
	}
	if len(digits) > 1 && digits[0] == '0' {
		return 0, fmt.Errorf("%w: amount %q has leading zeros", ErrInvalid, amt)
	}

	value, err := decimal.NewFromString(digits)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q: %v", ErrInvalid, amt, err)
	}
	msat := value.Shift(exp + 11)
	if !msat.IsInteger() {
		return 0, fmt.Errorf("%w: amount %q is not a whole number of millisatoshis", ErrInvalid, amt)
	}
	bi := msat.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("%w: amount %q out of range", ErrInvalid, amt)
	}
	return model.Msat(bi.Uint64()), nil
}

func (i *Invoice) parseFields(fields []byte) (hasHash bool, err error) {
	for len(fields) > 0 {
		if len(fields) < 3 {
			return false, fmt.Errorf("%w: truncated tagged field", ErrInvalid)
		}
		typ := fields[0]
		n := int(fields[1])<<5 | int(fields[2])
		fields = fields[3:]
		if len(fields) < n {
			return false, fmt.Errorf("%w: tagged field %d overruns data", ErrInvalid, typ)
		}
		value := fields[:n]
		fields = fields[n:]

		switch typ {
		case fieldPaymentHash:
			// Fields of unexpected length are skipped, not rejected.
			if n != hashGroups || hasHash {
				continue
			}
			b, err := groupsToBytes(value)
			if err != nil {
				return false, err
			}
			copy(i.PaymentHash[:], b)
			hasHash = true
		case fieldPaymentSecret:
			if n != hashGroups {
				continue
			}
			b, err := groupsToBytes(value)
			if err != nil {
				return false, err
			}
			var secret [32]byte
			copy(secret[:], b)
			i.PaymentSecret = &secret
		case fieldDescriptionHash:
			if n != hashGroups {
				continue
			}
			b, err := groupsToBytes(value)
			if err != nil {
				return false, err
			}
			var h [32]byte
			copy(h[:], b)
			i.DescriptionHash = &h
		case fieldDescription:
			b, err := groupsToBytes(value)
			if err != nil {
				return false, err
			}
			if !utf8.Valid(b) {
				return false, fmt.Errorf("%w: description is not valid UTF-8", ErrInvalid)
			}
			i.Description = string(b)
		case fieldPayee:
			if n != pubkeyGroups {
				continue
			}
			b, err := groupsToBytes(value)
			if err != nil {
				return false, err
			}
			i.Payee = b
		case fieldExpiry:
			i.Expiry = time.Duration(base32ToUint64(value)) * time.Second
		case fieldMinFinalCLTV:
			i.MinFinalCLTV = base32ToUint64(value)
		}
	}
	return hasHash, nil
}

// checkSignature verifies the payee's signature over hrp and the data part.
// Without an explicit payee field the signer is recovered from the
// signature.
func (i *Invoice) checkSignature(hrp string, body, sigGroups []byte) error {
	sig, err := groupsToBytes(sigGroups)
	if err != nil {
		return err
	}
	if len(sig) != 65 || sig[64] > 3 {
		return fmt.Errorf("%w: malformed signature", ErrInvalid)
	}

	hash, err := signingHash(hrp, body)
	if err != nil {
		return err
	}

	if i.Payee != nil {
		if !crypto.VerifySignature(i.Payee, hash, sig[:64]) {
			return fmt.Errorf("%w: signature does not match payee", ErrInvalid)
		}
		return nil
	}

	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return fmt.Errorf("%w: recover payee: %v", ErrInvalid, err)
	}
	i.Payee = crypto.CompressPubkey(pub)
	return nil
}

func signingHash(hrp string, body []byte) ([]byte, error) {
	b, err := bech32.ConvertBits(body, 5, 8, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	h := sha256.New()
	h.Write([]byte(hrp))
	h.Write(b)
	return h.Sum(nil), nil
}

func groupsToBytes(groups []byte) ([]byte, error) {
	b, err := bech32.ConvertBits(groups, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return b, nil
}

func base32ToUint64(groups []byte) uint64 {
	var v uint64
	for _, g := range groups {
		v = v<<5 | uint64(g)
	}
	return v
}
