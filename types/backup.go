package types

// BackupFormatVersion identifies the backup snapshot schema. Restore
// rejects snapshots carrying any other version.
const BackupFormatVersion = "1.0"

// BackupSnapshot is a self-describing export of the entire store: every
// document, the last-opened pointer and the storage usage at the time the
// backup was taken.
type BackupSnapshot struct {
	Timestamp int64      `json:"timestamp"` // Milliseconds since epoch
	Version   string     `json:"version"`
	Data      BackupData `json:"data"`
}

// BackupData is the payload section of a backup snapshot.
type BackupData struct {
	Diagrams    []Document  `json:"diagrams"`
	LastOpened  *LastOpened `json:"lastOpened"`
	StorageInfo StorageInfo `json:"storageInfo"`
}
