// pkg/backing/sync_other.go

//go:build !linux

package backing

import "os"

func datasync(f *os.File) error {
	return f.Sync()
}
