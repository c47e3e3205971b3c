package db

const (
	StatusRunning  = "running"
	StatusOK       = "ok"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

type Run struct {
	ID       int64
	UUID     string
	Command  string
	Started  int64
	Finished int64
	Status   string
}

type Backup struct {
	ID         int64
	RunID      int64
	Name       string
	Course     string
	ResultsDir string
	Processed  int
	Skipped    int
	Bytes      int64
	Error      string
	Objects    []*Placement
}

type Placement struct {
	ID          int64
	BackupID    int64
	ContentHash string
	Component   string
	FileArea    string
	Username    string
	Source      string
	Destination string
	Size        int64
}

// Archive is the fingerprint of an input archive that was processed
// successfully.
type Archive struct {
	Name     string
	Size     int64
	Modified int64
	RunID    int64
}
