package model

import "time"

// ManifestVersion is the on-disk schema tag, pinned per spec.md §3.
const ManifestVersion = "1.0"

// ManifestFile is one entry in an ArtifactManifest.
type ManifestFile struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// ArtifactManifest is the persisted, content-addressed record of an upload.
type ArtifactManifest struct {
	Version          string         `json:"version"`
	Name             string         `json:"name"`
	CreatedAt        time.Time      `json:"created_at"`
	Compression      Compression    `json:"compression"`
	FileCount        int            `json:"file_count"`
	TotalSizeBytes   int64          `json:"total_size_bytes"`
	CompressedBytes  int64          `json:"compressed_size_bytes,omitempty"`
	Files            []ManifestFile `json:"files"`
}
