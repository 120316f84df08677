// Package installledger is a small sqlite-backed cache of the last
// successful install for each ResolvedVersion id, adapted from
// metacache.go's MetaCache: instead of tracking CurseForge mod/file
// identities, it tracks which install_version/install_libraries/
// install_assets stages have completed for a given version, so a caller
// can cheaply ask "is this already installed" without re-walking the
// filesystem.
package installledger

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xeonx/timeago"
)

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}

// Stage names one of the three install phases a version can complete.
type Stage string

const (
	StageVersion   Stage = "version"
	StageLibraries Stage = "libraries"
	StageAssets    Stage = "assets"
)

// Ledger wraps a sqlite database recording, per (version id, stage), the
// Unix timestamp of the last successful completion.
type Ledger struct {
	db *sql.DB
}

// Open creates (if necessary) and opens the ledger database under
// <game_dir>/.launchcore.cache, mirroring MetaCache's dbPath convention of
// a single dotfile at the root of the managed directory.
func Open(gameDir string) (*Ledger, error) {
	dbPath := filepath.Join(gameDir, ".launchcore.cache")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS installs(
		version_id TEXT NOT NULL,
		stage      TEXT NOT NULL,
		loader     TEXT NOT NULL,
		installed_at INTEGER NOT NULL,
		PRIMARY KEY(version_id, stage)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create installs table: %w", err)
	}

	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record marks one stage complete for versionID at the given Unix
// timestamp (the caller stamps the time; this package never calls
// time.Now() itself so it stays trivially testable).
func (l *Ledger) Record(versionID string, loader string, stage Stage, unixSeconds int64) error {
	_, err := l.db.Exec(
		`INSERT OR REPLACE INTO installs(version_id, stage, loader, installed_at) VALUES (?, ?, ?, ?)`,
		versionID, string(stage), loader, unixSeconds,
	)
	return err
}

// LastCompleted returns the Unix timestamp of the last recorded
// completion of stage for versionID, and whether any record exists.
func (l *Ledger) LastCompleted(versionID string, stage Stage) (int64, bool) {
	var ts int64
	err := l.db.QueryRow(
		`SELECT installed_at FROM installs WHERE version_id = ? AND stage = ?`,
		versionID, string(stage),
	).Scan(&ts)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// Summary formats a stage's recorded completion time for diagnostic/log
// output, the way main.go's "pack.list.latest" formats install ages with
// timeago.
func (l *Ledger) Summary(versionID string, stage Stage, nowUnix int64) string {
	ts, ok := l.LastCompleted(versionID, stage)
	if !ok {
		return fmt.Sprintf("%s: never installed", versionID)
	}
	age := timeago.NoMax(timeago.English)
	return fmt.Sprintf("%s (%s): %s", versionID, stage, age.FormatReference(unixTime(ts), unixTime(nowUnix)))
}
