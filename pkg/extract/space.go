package extract

import (
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/disk"
)

var ErrInsufficientSpace = errors.New("insufficient free space")

// FreeSpace is a SpaceChecker backed by the operating system's disk usage
// statistics for dir.
func FreeSpace(dir string, need int64) error {
	usage, err := disk.Usage(dir)
	if err != nil {
		return errors.Wrapf(err, "reading disk usage of %s", dir)
	}
	if need > 0 && usage.Free < uint64(need) {
		return errors.Wrapf(ErrInsufficientSpace, "%s free on %s, archive is %s",
			humanize.Bytes(usage.Free), dir, humanize.Bytes(uint64(need)))
	}
	return nil
}
