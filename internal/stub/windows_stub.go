//go:build windows

package stub

import "os"

// DeviceSize always reports ok=false on Windows: the core opens VHD
// and VHDX images as regular files, and raw \\.\PhysicalDriveN access
// is an external mount-glue concern, not the decoder's.
func DeviceSize(f *os.File) (size uint64, ok bool, err error) {
	return 0, false, nil
}
