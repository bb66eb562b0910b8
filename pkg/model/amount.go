package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MsatPerSat is the number of millisatoshis in one satoshi.
const MsatPerSat = 1000

// Msat is an amount in millisatoshis, the unit bids are expressed in.
type Msat uint64

// Sat is an amount in satoshis, the unit channel capacities are expressed in.
type Sat uint64

// Msat converts a satoshi amount to millisatoshis.
func (s Sat) Msat() Msat {
	return Msat(uint64(s) * MsatPerSat)
}

// BTC returns the amount in bitcoin.
func (m Msat) BTC() decimal.Decimal {
	return decimal.NewFromUint64(uint64(m)).Shift(-11)
}

// String renders the amount with its unit and the bitcoin equivalent,
// e.g. "100000 msat (0.000001 BTC)".
func (m Msat) String() string {
	return fmt.Sprintf("%d msat (%s BTC)", uint64(m), m.BTC().String())
}

func (s Sat) String() string {
	return fmt.Sprintf("%d sat (%s BTC)", uint64(s), s.Msat().BTC().String())
}
