package mediastore

import "io"

// IngestRequest contains parameters for ingesting uploaded content.
type IngestRequest struct {
	// Reader supplies the uploaded bytes. It is consumed fully.
	Reader io.Reader

	// FileName is the original upload filename. Its extension feeds the
	// storage key, and it becomes the record title when Title is empty.
	FileName string

	// Title is an optional human-readable label.
	Title string
}
