package classifier

import (
	"fmt"
	"path/filepath"
	"strings"
)

// File is one user-selected file, as handed over by the folder picker
type File struct {
	Path    string `json:"path"`     // absolute path on disk
	RelPath string `json:"rel_path"` // path relative to the selection root, "/"-separated
	Name    string `json:"name"`     // bare filename
	Size    int64  `json:"size"`
}

// Group is the set of files inferred to belong to one client
type Group struct {
	Client string `json:"client"`
	Files  []File `json:"files"`
}

// UnknownClient is assigned when neither folder structure nor filename
// carries a client name
const UnknownClient = "Unknown"

// allowed upload extensions; anything else is rejected before upload
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".heic": true,
}

// ClientFor derives the owning client name for a file. The second path
// segment is the client folder (the first is the arbitrarily-named selection
// root); every nested subfolder below it belongs to the same client. With
// fewer than two segments the text before the first "_" in the filename is
// used, or UnknownClient if there is none.
func ClientFor(f File) string {
	segments := splitSegments(f.RelPath)
	if len(segments) >= 2 {
		return segments[1]
	}

	name := f.Name
	if name == "" && len(segments) > 0 {
		name = segments[len(segments)-1]
	}

	if idx := strings.Index(name, "_"); idx > 0 {
		return name[:idx]
	}

	return UnknownClient
}

// Filename returns the bare filename of a file
func Filename(f File) string {
	if f.Name != "" {
		return f.Name
	}

	segments := splitSegments(f.RelPath)
	if len(segments) > 0 {
		return segments[len(segments)-1]
	}

	return filepath.Base(f.Path)
}

// Group buckets every file into exactly one client group. The same rule is
// used for display grouping and for submission, so the two can never diverge.
// Group order follows first appearance in the selection.
func GroupByClient(files []File) []Group {
	groups := []Group{}
	index := map[string]int{}

	for _, f := range files {
		client := ClientFor(f)
		i, exists := index[client]
		if !exists {
			i = len(groups)
			index[client] = i
			groups = append(groups, Group{Client: client})
		}
		groups[i].Files = append(groups[i].Files, f)
	}

	return groups
}

// Validate rejects files that should never reach the analyze endpoint
func Validate(f File) error {
	ext := strings.ToLower(filepath.Ext(Filename(f)))
	if !allowedExtensions[ext] {
		return fmt.Errorf("unsupported file type %q", ext)
	}

	if f.Size == 0 {
		return fmt.Errorf("file is empty")
	}

	return nil
}

// splitSegments normalizes a relative path into its non-empty segments
func splitSegments(relPath string) []string {
	relPath = strings.ReplaceAll(relPath, "\\", "/")

	segments := []string{}
	for _, p := range strings.Split(relPath, "/") {
		if p != "" {
			segments = append(segments, p)
		}
	}

	return segments
}
