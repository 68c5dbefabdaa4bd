package types

// FileRecord describes a single file discovered by a repository scan
type FileRecord struct {
	Path     string // Relative to the scan root, slash separated
	AbsPath  string
	Name     string
	Ext      string // Lower-cased, including the leading dot
	Size     int64  // 0 when stat failed
	Language string // Empty when the extension has no known language
}
