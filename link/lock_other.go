//go:build !unix

package link

// deviceLock is a no-op where flock(2) is unavailable; the serial driver's own
// exclusive open is the only protection there.
type deviceLock struct{}

func lockDevice(string) (*deviceLock, error) { return &deviceLock{}, nil }

func (l *deviceLock) release() {}
