package models

// ConnectionType is the physical link kind reported by the platform.
type ConnectionType string

const (
	ConnectionWifi     ConnectionType = "wifi"
	ConnectionCellular ConnectionType = "cellular"
	ConnectionEthernet ConnectionType = "ethernet"
	ConnectionNone     ConnectionType = "none"
	ConnectionUnknown  ConnectionType = "unknown"
)

// SignalStrength is the classified usability of the current link.
type SignalStrength string

const (
	SignalPoor      SignalStrength = "poor"
	SignalFair      SignalStrength = "fair"
	SignalGood      SignalStrength = "good"
	SignalExcellent SignalStrength = "excellent"
)

// NetworkCondition is the monitor's classified view of connectivity.
// Latency is in milliseconds, Bandwidth in Mbps; both are estimates
// derived from the connection type, not measurements.
type NetworkCondition struct {
	IsConnected         bool           `json:"is_connected"`
	Type                ConnectionType `json:"type"`
	IsInternetReachable bool           `json:"is_internet_reachable"`
	Strength            SignalStrength `json:"strength"`
	Latency             int            `json:"latency"`
	Bandwidth           float64        `json:"bandwidth"`
}

// Suitable reports whether the link is good enough to attempt a sync.
func (c NetworkCondition) Suitable() bool {
	return c.IsConnected && c.IsInternetReachable
}
