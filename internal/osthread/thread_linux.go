//go:build linux

package osthread

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// maxNameLen is the kernel's TASK_COMM_LEN minus the terminating NUL.
const maxNameLen = 15

func gettid() int {
	return unix.Gettid()
}

func setName(name string) error {
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	p, err := unix.BytePtrFromString(name)
	if err != nil {
		return err
	}
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(p)), 0, 0, 0)
}

// threadName reads the calling thread's name back from the kernel.
func threadName() (string, error) {
	var buf [maxNameLen + 1]byte
	if err := unix.Prctl(unix.PR_GET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0, 0, 0); err != nil {
		return "", err
	}
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n]), nil
}

func setPriority(tid, nice int) error {
	return unix.Setpriority(unix.PRIO_PROCESS, tid, nice)
}

// getPriority converts the raw getpriority result (20 - nice) back to a nice
// value.
func getPriority(tid int) (int, error) {
	raw, err := unix.Getpriority(unix.PRIO_PROCESS, tid)
	if err != nil {
		return 0, err
	}
	return 20 - raw, nil
}
