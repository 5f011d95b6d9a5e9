package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Backup is the stored metadata record for one snapshot. The snapshot
// payload itself lives in the auxiliary blob store keyed by backup id.
type Backup struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Size        int64          `db:"size" json:"size"`
	RecordCount int            `db:"record_count" json:"recordCount"`
	Metadata    types.JSONText `db:"metadata" json:"metadata"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
	DeletedAt   *time.Time     `db:"deleted_at" json:"deletedAt,omitempty"`
}

// BackupMeta is the decoded shape of Backup.Metadata.
type BackupMeta struct {
	Version string   `json:"version"`
	Tables  []string `json:"tables"`
}

// BackupSnapshot is the serialized payload format, exchanged verbatim on
// export and import.
type BackupSnapshot struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	CreatedAt time.Time        `json:"createdAt"`
	Data      BackupData       `json:"data"`
	Metadata  SnapshotMetadata `json:"metadata"`
}

// BackupData bundles the captured collections.
type BackupData struct {
	Timetables []Timetable `json:"timetables"`
	Courses    []Course    `json:"courses"`
	Sessions   []Session   `json:"sessions"`
}

// SnapshotMetadata describes the payload itself.
type SnapshotMetadata struct {
	Version      string `json:"version"`
	TotalRecords int    `json:"totalRecords"`
}
