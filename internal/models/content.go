// Package models defines the domain types for postdesk.
package models

// Entry types reported by the content store.
const (
	EntryFile = "file"
	EntryDir  = "dir"
)

// Entry is one item of a repository directory listing.
type Entry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

// File is a fetched resource with its decoded content. SHA is the
// optimistic-concurrency token for the next write.
type File struct {
	Entry
	Content []byte `json:"-"`
}

// WriteRequest describes a create or replace of a single resource.
// An empty SHA means create: the write fails if the path is occupied.
// Encoded marks Content as already base64-encoded.
type WriteRequest struct {
	Path    string
	Content []byte
	Message string
	SHA     string
	Encoded bool
}

// Commit identifies the commit produced by a write or delete.
type Commit struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

// CommitResult is returned by mutating store operations. Content is nil
// after a delete.
type CommitResult struct {
	Content *Entry `json:"content"`
	Commit  Commit `json:"commit"`
}

// ContentSHA returns the sha of the written content, or "" after a delete.
func (r *CommitResult) ContentSHA() string {
	if r == nil || r.Content == nil {
		return ""
	}
	return r.Content.SHA
}
