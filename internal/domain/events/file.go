package events

// FileChangeType represents the type of file change.
type FileChangeType string

const (
	FileChangeCreated  FileChangeType = "created"
	FileChangeModified FileChangeType = "modified"
	FileChangeDeleted  FileChangeType = "deleted"
	FileChangeRenamed  FileChangeType = "renamed"
)

// FileChangedPayload is the payload for file_changed events.
type FileChangedPayload struct {
	Path    string         `json:"path"`
	Change  FileChangeType `json:"change"`
	Size    int64          `json:"size,omitempty"`
	OldPath string         `json:"old_path,omitempty"`
}

// NewFileChangedEvent creates a new file_changed event.
func NewFileChangedEvent(repoID, path string, change FileChangeType, size int64) *BaseEvent {
	return NewRepoEvent(EventTypeFileChanged, repoID, FileChangedPayload{
		Path:   path,
		Change: change,
		Size:   size,
	})
}

// NewFileRenamedEvent creates a new file_renamed event.
func NewFileRenamedEvent(repoID, oldPath, newPath string) *BaseEvent {
	return NewRepoEvent(EventTypeFileRenamed, repoID, FileChangedPayload{
		Path:    newPath,
		Change:  FileChangeRenamed,
		OldPath: oldPath,
	})
}
