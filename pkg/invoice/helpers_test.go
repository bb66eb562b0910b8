package invoice

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// mustEncodeHRP returns a checksum-valid bech32 string with the given hrp and
// enough data groups to pass the length check.
func mustEncodeHRP(t *testing.T, hrp string) string {
	t.Helper()
	data := make([]byte, timestampGroups+signatureGroups)
	s, err := bech32.Encode(hrp, data)
	if err != nil {
		t.Fatalf("bech32 encode: %v", err)
	}
	return s
}

func encodeRaw(t *testing.T, hrp string, body, sig []byte) string {
	t.Helper()
	groups, err := bech32.ConvertBits(sig, 8, 5, true)
	if err != nil {
		t.Fatalf("convert signature: %v", err)
	}
	s, err := bech32.Encode(hrp, append(append([]byte{}, body...), groups...))
	if err != nil {
		t.Fatalf("bech32 encode: %v", err)
	}
	return s
}
