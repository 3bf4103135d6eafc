// Package ingest discovers candidate invoice files and watches for new ones.
package ingest

// Candidate is one discovered candidate file.
type Candidate struct {
	Path    string
	HashHex string
	Size    int64
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned    uint32
	Matched    uint32
	Accepted   uint32
	Duplicates uint32
	Failed     uint32
}
