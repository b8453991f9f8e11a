package local

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"
)

// Probe implements the capability gates spec §4.2 requires of a local
// backend: native library loaded, 64-bit ARM CPU class, and physical
// memory via gopsutil (the teacher's own vectorstores module dependency).
type Probe struct{}

func NewProbe() Probe { return Probe{} }

func (Probe) NativeLoaded() bool {
	_, err := loadNativeLib()
	return err == nil
}

func (Probe) Is64BitARM() bool {
	return runtime.GOARCH == "arm64"
}

func (Probe) PhysicalMemoryBytes() (uint64, error) {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return stat.Total, nil
}
