//go:build !linux && !darwin

package fsops

import (
	"os"
	"time"
)

func changeTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
