package defs

// Common labels for logging
const (
	LabelComponent = "component"
	LabelName      = "name"
	LabelPart      = "part"

	LabelLocal       = "local"
	LabelAddress     = "address"
	LabelClient      = "client"
	LabelDestination = "destination"
)

// MetricPrefix is the prefix of all Prometheus metrics exported by the agent
const MetricPrefix = "udpc_"
