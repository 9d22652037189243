//go:build !linux

package native

type processMemory struct{}

func openProcessMemory(pid int) (*processMemory, error) {
	return nil, ErrNativeBackendDisabled
}

func (p *processMemory) ReadMemory(buf []byte, addr uint64) (int, error) {
	return 0, ErrNativeBackendDisabled
}

func (p *processMemory) Close() error {
	return nil
}
