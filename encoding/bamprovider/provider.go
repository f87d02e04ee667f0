package bamprovider

import (
	"strings"

	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// Provider gives sequential access to one alignment file.
type Provider interface {
	// GetHeader returns the file header.  The caller must not modify it.
	GetHeader() (*sam.Header, error)

	// NewIterator returns an iterator positioned before the first record of
	// the file.  Iterators are independent of each other.
	NewIterator() Iterator

	// Close releases the provider and reports the first error seen by it or
	// by any of its iterators.  Every iterator must be closed first.
	Close() error
}

// Iterator yields the records of one file in file order.  It is not safe for
// concurrent use.
type Iterator interface {
	// Scan advances to the next record.  It returns false at the end of the
	// file or on error; Err tells the two apart.
	Scan() bool

	// Record returns the record Scan advanced to.  The iterator does not
	// reuse it, so the caller may keep and modify it.
	Record() *sam.Record

	// Err returns the iteration error, or nil at a clean end of file.
	Err() error

	// Close must be called once per iterator.  It returns Err().
	Close() error
}

// FileType is the encoding of an alignment file.
type FileType int

const (
	// Unknown means the type could not be determined.
	Unknown FileType = iota
	// BAM is binary, BGZF-compressed.
	BAM
	// SAM is plain text.
	SAM
)

// ParseFileType maps "bam" and "sam" to their FileType, and anything else to
// Unknown.
func ParseFileType(name string) FileType {
	switch strings.ToLower(name) {
	case "bam":
		return BAM
	case "sam":
		return SAM
	}
	return Unknown
}

// GuessFileType infers the type from the path suffix.
func GuessFileType(path string) FileType {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		if t := ParseFileType(path[i+1:]); t != Unknown {
			return t
		}
	}
	vlog.VI(1).Infof("%v: not a .bam or .sam path", path)
	return Unknown
}

// NewProvider returns a Provider for path.  Paths without a ".sam" suffix are
// read as BAM.
func NewProvider(path string) Provider {
	t := GuessFileType(path)
	if t != SAM {
		t = BAM
	}
	return &BAMProvider{Path: path, Type: t}
}
