//go:build windows

package vault

import "golang.org/x/sys/windows"

func statDisk(dir string) (total, free, available uint64, err error) {
	p, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0, 0, 0, err
	}
	err = windows.GetDiskFreeSpaceEx(p, &available, &total, &free)
	return total, free, available, err
}
