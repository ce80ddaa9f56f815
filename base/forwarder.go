package base

// LogSubmitter accepts log records from a log source
//
// Submit never blocks and never fails. Records are copied before Submit returns.
type LogSubmitter interface {
	Submit(record []byte)
}

// DestinationController is the interface exposed to control planes to read and change the forwarding destination
type DestinationController interface {

	// CurrentConfig returns the destination in text form "A.B.C.D:P\n"
	CurrentConfig() string

	// Configure parses and applies the destination in text form "A.B.C.D[:P]", optionally ending with newline
	//
	// On error, the destination is unchanged
	Configure(text []byte) error
}
