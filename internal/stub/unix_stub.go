//go:build !windows
// +build !windows

package stub

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// blkGetSize64 is Linux's BLKGETSIZE64 ioctl number; on other unix
// platforms the ioctl simply fails and DeviceSize reports ok=false.
const blkGetSize64 = 0x80081272

// DeviceSize returns the addressable size of the block or character
// device open as f, for images opened directly against a raw device
// node rather than a regular file (os.Stat().Size() reports 0 for
// those). It returns ok=false for anything that isn't a device.
func DeviceSize(f *os.File) (size uint64, ok bool, err error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return 0, false, err
	}
	if st.Mode&unix.S_IFMT != unix.S_IFBLK && st.Mode&unix.S_IFMT != unix.S_IFCHR {
		return 0, false, nil
	}

	var n uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(blkGetSize64), uintptr(unsafe.Pointer(&n)))
	if errno != 0 {
		// Character devices and non-Linux unixes don't implement this
		// ioctl: fall back and let the regular-file path handle sizing.
		return 0, false, nil
	}
	return n, true, nil
}
