// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Implementation of Linux kernel ioctl macros (<uapi/asm-generic/ioctl.h>)
// See https://www.kernel.org/doc/Documentation/ioctl/ioctl-number.txt

package ioctl

import "golang.org/x/sys/unix"

const (
	iocNrbits   = 8
	iocTypebits = 8
	iocSizebits = 14

	iocNrshift   = 0
	iocTypeshift = iocNrshift + iocNrbits
	iocSizeshift = iocTypeshift + iocTypebits
	iocDirshift  = iocSizeshift + iocSizebits

	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, t, nr, size uintptr) uintptr {
	return (dir << iocDirshift) | (t << iocTypeshift) | (nr << iocNrshift) | (size << iocSizeshift)
}

// Io is equivalent to the _IO macro.
func Io(t, nr uintptr) uintptr {
	return ioc(iocNone, t, nr, 0)
}

// Ior is equivalent to the _IOR macro.
func Ior(t, nr, size uintptr) uintptr {
	return ioc(iocRead, t, nr, size)
}

// Iow is equivalent to the _IOW macro.
func Iow(t, nr, size uintptr) uintptr {
	return ioc(iocWrite, t, nr, size)
}

// Iowr is equivalent to the _IOWR macro.
func Iowr(t, nr, size uintptr) uintptr {
	return ioc(iocRead|iocWrite, t, nr, size)
}

// Ioctl executes an ioctl command on the specified file descriptor
func Ioctl(fd, cmd, ptr uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, cmd, ptr)
	if errno != 0 {
		return errno
	}
	return nil
}
