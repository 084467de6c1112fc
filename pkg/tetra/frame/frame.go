package frame

// Assembler takes demapped bits and assembles them into bursts.
type Assembler interface {
	// Receive expects a buffer of 1s and 0s, one bit per byte, in air
	// order. There is no bit packing.
	Receive([]byte)
}

var _ Assembler = (*BurstAssembler)(nil)
