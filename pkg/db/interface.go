package db

type DB interface {
	Init() error
	AddRun(run *Run) error
	FinishRun(run *Run) error
	AddBackup(backup *Backup) error
	GetRuns() ([]*Run, error)
	GetRun(id int64) (*Run, error)
	GetBackupsForRun(runID int64) ([]*Backup, error)
	GetPlacements(backupID int64) ([]*Placement, error)
	FindPlacementsByHash(hash string) ([]*Placement, error)
	SaveArchive(archive *Archive) error
	GetArchive(name string) (*Archive, error)
	Close() error
}
