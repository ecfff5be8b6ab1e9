package store

import (
	"os"
	"time"
)

// Marker identifies the exact version of the list file a table was loaded from.
// The zero Marker stands for a missing file.
type Marker struct {
	info os.FileInfo
}

func (m Marker) Absent() bool {
	return m.info == nil
}

// Matches reports whether info describes the same file version as the marker.
func (m Marker) Matches(info os.FileInfo) bool {
	if m.info == nil || info == nil {
		return m.info == nil && info == nil
	}

	return os.SameFile(m.info, info) && m.info.ModTime().Equal(info.ModTime()) && m.info.Size() == info.Size()
}

func (m Marker) ModTime() time.Time {
	if m.info == nil {
		return time.Time{}
	}

	return m.info.ModTime()
}
