package model

type ICEHints struct {
	PreferHost *bool `json:"preferHost,omitempty"`
}

type ErasureHints struct {
	Enabled bool     `json:"enabled"`
	K       *float64 `json:"k,omitempty"`
	M       *float64 `json:"m,omitempty"`
}

type MultiplexingHints struct {
	MaxInFlight *float64 `json:"maxInFlight,omitempty"`
}

type TransportHints struct {
	AllowQUIC *bool `json:"allowQUIC,omitempty"`
}

// TransferConfig carries the optional tuning hints a sender attaches to a
// room. The broker stores and relays them but never acts on them.
type TransferConfig struct {
	ICEHints       *ICEHints          `json:"iceHints,omitempty"`
	Erasure        *ErasureHints      `json:"erasure,omitempty"`
	Multiplexing   *MultiplexingHints `json:"multiplexing,omitempty"`
	TransportHints *TransportHints    `json:"transportHints,omitempty"`
}

// Merge returns c with every group present in patch replacing the group in c.
// Groups absent from patch are kept as they are.
func (c TransferConfig) Merge(patch TransferConfig) TransferConfig {
	if patch.ICEHints != nil {
		c.ICEHints = patch.ICEHints
	}
	if patch.Erasure != nil {
		c.Erasure = patch.Erasure
	}
	if patch.Multiplexing != nil {
		c.Multiplexing = patch.Multiplexing
	}
	if patch.TransportHints != nil {
		c.TransportHints = patch.TransportHints
	}
	return c
}

// IsZero reports whether no group is set.
func (c TransferConfig) IsZero() bool {
	return c.ICEHints == nil && c.Erasure == nil && c.Multiplexing == nil && c.TransportHints == nil
}
