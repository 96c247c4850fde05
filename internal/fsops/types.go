package fsops

import (
	"os"
	"time"
)

// FileStat is a read-only projection of OS stat data, recomputed on every call.
// ResolvedPath is informational only and must not be passed back as a virtual path.
type FileStat struct {
	Size           int64       `json:"size"`
	ModifiedAt     time.Time   `json:"modifiedAt"`
	CreatedAt      time.Time   `json:"createdAt"`
	Mode           os.FileMode `json:"mode"`
	IsFile         bool        `json:"isFile"`
	IsDirectory    bool        `json:"isDirectory"`
	IsSymbolicLink bool        `json:"isSymbolicLink"`
	ResolvedPath   string      `json:"resolvedPath"`
}

// DirEntry is one child of a listed directory.
type DirEntry struct {
	Name        string `json:"name"`
	IsFile      bool   `json:"isFile"`
	IsDirectory bool   `json:"isDirectory"`
}

func newFileStat(real string, info os.FileInfo) *FileStat {
	return &FileStat{
		Size:           info.Size(),
		ModifiedAt:     info.ModTime(),
		CreatedAt:      changeTime(info),
		Mode:           info.Mode(),
		IsFile:         info.Mode().IsRegular(),
		IsDirectory:    info.IsDir(),
		IsSymbolicLink: info.Mode()&os.ModeSymlink != 0,
		ResolvedPath:   real,
	}
}
