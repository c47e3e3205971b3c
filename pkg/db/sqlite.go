package db

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("not found")

func NewSQLLite(dbpath string) (*SQLLiteDB, error) {
	rawDB, err := sql.Open("sqlite3", dbpath+"?_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrapf(err, "opening catalog %s", dbpath)
	}
	rawDB.SetMaxOpenConns(1)
	return &SQLLiteDB{rawDB: rawDB}, nil
}

type SQLLiteDB struct {
	rawDB *sql.DB
}

func (db *SQLLiteDB) runStatement(sql string) (sql.Result, error) {
	statement, err := db.rawDB.Prepare(sql)
	if err != nil {
		return nil, err
	}
	defer statement.Close()

	result, err := statement.Exec()
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (db *SQLLiteDB) Init() (err error) {
	_, err = db.runStatement("PRAGMA foreign_keys = ON")
	if err != nil {
		return
	}
	log.Debug().Msg("Enabling foreign keys")

	_, err = db.runStatement(
		"CREATE TABLE IF NOT EXISTS runs (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"uuid TEXT NOT NULL, " +
			"command TEXT, " +
			"started INTEGER, " +
			"finished INTEGER, " +
			"status TEXT, " +
			"UNIQUE(uuid)" +
			")")
	if err != nil {
		return err
	}

	_, err = db.runStatement(
		"CREATE TABLE IF NOT EXISTS backups (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"runid INTEGER, " +
			"name TEXT, " +
			"course TEXT, " +
			"resultsdir TEXT, " +
			"processed INTEGER, " +
			"skipped INTEGER, " +
			"bytes INTEGER, " +
			"error TEXT, " +
			"FOREIGN KEY(runid) REFERENCES runs(id)" +
			")")
	if err != nil {
		return err
	}

	_, err = db.runStatement(
		"CREATE TABLE IF NOT EXISTS placements (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"backupid INTEGER, " +
			"contenthash TEXT, " +
			"component TEXT, " +
			"filearea TEXT, " +
			"username TEXT, " +
			"source TEXT, " +
			"destination TEXT, " +
			"size INTEGER, " +
			"FOREIGN KEY(backupid) REFERENCES backups(id)" +
			")")
	if err != nil {
		return err
	}

	_, err = db.runStatement("CREATE INDEX IF NOT EXISTS placements_hash ON placements(contenthash)")
	if err != nil {
		return err
	}

	_, err = db.runStatement(
		"CREATE TABLE IF NOT EXISTS archives (" +
			"name TEXT PRIMARY KEY, " +
			"size INTEGER, " +
			"modified INTEGER, " +
			"runid INTEGER, " +
			"FOREIGN KEY(runid) REFERENCES runs(id)" +
			")")
	return err
}

func (db *SQLLiteDB) AddRun(run *Run) error {
	result, err := db.rawDB.Exec("INSERT INTO runs (uuid, command, started, finished, status) VALUES(?, ?, ?, ?, ?)",
		run.UUID, run.Command, run.Started, run.Finished, run.Status)
	if err != nil {
		return errors.Wrap(err, "adding run")
	}
	run.ID, err = result.LastInsertId()
	return err
}

func (db *SQLLiteDB) FinishRun(run *Run) error {
	_, err := db.rawDB.Exec("UPDATE runs SET finished=?, status=? WHERE id=?", run.Finished, run.Status, run.ID)
	return errors.Wrap(err, "finishing run")
}

// AddBackup stores a backup and its placements in one transaction.
func (db *SQLLiteDB) AddBackup(backup *Backup) error {
	tx, err := db.rawDB.Begin()
	if err != nil {
		return err
	}

	result, err := tx.Exec("INSERT INTO backups (runid, name, course, resultsdir, processed, skipped, bytes, error) VALUES(?, ?, ?, ?, ?, ?, ?, ?)",
		backup.RunID, backup.Name, backup.Course, backup.ResultsDir, backup.Processed, backup.Skipped, backup.Bytes, backup.Error)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "adding backup")
	}
	backup.ID, err = result.LastInsertId()
	if err != nil {
		tx.Rollback()
		return err
	}

	log.Debug().Int("number", len(backup.Objects)).Msg("Number of placements")
	statement, err := tx.Prepare("INSERT INTO placements (backupid, contenthash, component, filearea, username, source, destination, size) VALUES(?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer statement.Close()

	for _, obj := range backup.Objects {
		obj.BackupID = backup.ID
		result, err := statement.Exec(obj.BackupID, obj.ContentHash, obj.Component, obj.FileArea, obj.Username, obj.Source, obj.Destination, obj.Size)
		if err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "adding placement %s", obj.Destination)
		}
		obj.ID, _ = result.LastInsertId()
	}
	return tx.Commit()
}

func (db *SQLLiteDB) GetRuns() (runs []*Run, err error) {
	rows, err := db.rawDB.Query("SELECT id, uuid, command, started, finished, status FROM runs ORDER BY started DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(&run.ID, &run.UUID, &run.Command, &run.Started, &run.Finished, &run.Status); err != nil {
			return nil, err
		}
		log.Debug().
			Int64("id", run.ID).
			Str("uuid", run.UUID).
			Msg("run found")
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (db *SQLLiteDB) GetRun(id int64) (*Run, error) {
	run := &Run{}
	err := db.rawDB.QueryRow("SELECT id, uuid, command, started, finished, status FROM runs WHERE id=?", id).
		Scan(&run.ID, &run.UUID, &run.Command, &run.Started, &run.Finished, &run.Status)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "run %d", id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (db *SQLLiteDB) GetBackupsForRun(runID int64) (backups []*Backup, err error) {
	rows, err := db.rawDB.Query("SELECT id, runid, name, course, resultsdir, processed, skipped, bytes, error FROM backups WHERE runid=? ORDER BY id", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		b := &Backup{}
		if err := rows.Scan(&b.ID, &b.RunID, &b.Name, &b.Course, &b.ResultsDir, &b.Processed, &b.Skipped, &b.Bytes, &b.Error); err != nil {
			return nil, err
		}
		backups = append(backups, b)
	}
	return backups, rows.Err()
}

func (db *SQLLiteDB) GetPlacements(backupID int64) ([]*Placement, error) {
	return db.queryPlacements("SELECT id, backupid, contenthash, component, filearea, username, source, destination, size FROM placements WHERE backupid=? ORDER BY id", backupID)
}

// FindPlacementsByHash returns every recorded copy of a content blob.
func (db *SQLLiteDB) FindPlacementsByHash(hash string) ([]*Placement, error) {
	return db.queryPlacements("SELECT id, backupid, contenthash, component, filearea, username, source, destination, size FROM placements WHERE contenthash=? ORDER BY id", hash)
}

func (db *SQLLiteDB) queryPlacements(query string, arg interface{}) (objects []*Placement, err error) {
	rows, err := db.rawDB.Query(query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		obj := &Placement{}
		if err := rows.Scan(&obj.ID, &obj.BackupID, &obj.ContentHash, &obj.Component, &obj.FileArea, &obj.Username, &obj.Source, &obj.Destination, &obj.Size); err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

// SaveArchive stores the fingerprint of archive, replacing an earlier one
// with the same name.
func (db *SQLLiteDB) SaveArchive(archive *Archive) error {
	_, err := db.rawDB.Exec("INSERT OR REPLACE INTO archives (name, size, modified, runid) VALUES(?, ?, ?, ?)",
		archive.Name, archive.Size, archive.Modified, archive.RunID)
	return errors.Wrapf(err, "saving archive %s", archive.Name)
}

func (db *SQLLiteDB) GetArchive(name string) (*Archive, error) {
	archive := &Archive{}
	err := db.rawDB.QueryRow("SELECT name, size, modified, runid FROM archives WHERE name=?", name).
		Scan(&archive.Name, &archive.Size, &archive.Modified, &archive.RunID)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "archive %s", name)
	}
	if err != nil {
		return nil, err
	}
	return archive, nil
}

func (db *SQLLiteDB) Close() error {
	return db.rawDB.Close()
}
