package castkit

import (
	"sync"
	"unsafe"
)

var (
	byteOrderOnce sync.Once
	bigEndian     bool
)

// IsBigEndian reports the byte order of the running machine. The check runs once.
func IsBigEndian() bool {
	byteOrderOnce.Do(func() {
		var marker uint16 = 0x0102
		bigEndian = *(*byte)(unsafe.Pointer(&marker)) == 0x01
	})
	return bigEndian
}
