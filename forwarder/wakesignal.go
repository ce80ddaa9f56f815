package forwarder

// wakeSignal is a coalescing "data available" flag passed from producer to sender
//
// Multiple notifications before the sender wakes collapse into one, so the sender must drain everything on each wake.
type wakeSignal struct {
	channel chan struct{}
}

func newWakeSignal() wakeSignal {
	return wakeSignal{
		channel: make(chan struct{}, 1),
	}
}

// Notify sets the flag and wakes the waiter if any. It never blocks.
func (sig wakeSignal) Notify() {
	select {
	case sig.channel <- struct{}{}:
	default:
	}
}

// Channel returns the channel to wait on. Receiving from it clears the flag.
func (sig wakeSignal) Channel() <-chan struct{} {
	return sig.channel
}
