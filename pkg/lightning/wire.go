package lightning

import "github.com/ionosphere-go/ionosphere/pkg/model"

// JSON shapes of the node.proto messages as read and written by protojson.
// 64-bit integers travel as strings, bytes as base64.

type amount struct {
	Msat uint64 `json:"msat,string"`
}

type fundchannelRequest struct {
	Amount struct {
		Amount *amount `json:"amount,omitempty"`
	} `json:"amount"`
	PushMsat *amount `json:"push_msat,omitempty"`
	ID       []byte  `json:"id"`
}

type payRequest struct {
	Bolt11        string   `json:"bolt11"`
	Label         *string  `json:"label,omitempty"`
	MaxFeePercent *float64 `json:"maxfeepercent,omitempty"`
	RetryFor      *uint32  `json:"retry_for,omitempty"`
	MaxDelay      *uint32  `json:"maxdelay,omitempty"`
	ExemptFee     *amount  `json:"exemptfee,omitempty"`
	RiskFactor    *float64 `json:"riskfactor,omitempty"`
	MaxFee        *amount  `json:"maxfee,omitempty"`
	AmountMsat    *amount  `json:"amount_msat,omitempty"`
}

func msatPtr(m *model.Msat) *amount {
	if m == nil {
		return nil
	}
	return &amount{Msat: uint64(*m)}
}
