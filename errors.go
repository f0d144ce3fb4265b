package iopkg

import (
	"errors"
	"fmt"
)

// Kind classifies a packaging or reading failure.
type Kind uint8

const (
	// KindUnknown is reported for errors that did not come from this package.
	KindUnknown Kind = iota
	// KindScan covers unreadable directories and files.
	KindScan
	// KindCompression covers encoder failures and oversized inputs.
	KindCompression
	// KindIO covers staging, output and payload read/write failures.
	KindIO
	// KindEmptyInput is reported when the source tree has no files.
	KindEmptyInput
	// KindSerialization covers table of contents encoding failures.
	KindSerialization
	// KindFormat covers malformed packages seen by a reader.
	KindFormat
	// KindChecksum is reported when a payload fails checksum verification.
	KindChecksum
	// KindNotFound is reported when a path is not in the table of contents.
	KindNotFound
)

// Sentinel errors, one per Kind. Every *Error matches the sentinel of its
// kind with errors.Is.
var (
	// ErrScan is returned when the source tree cannot be enumerated or read.
	ErrScan = errors.New("iopkg: scan failed")

	// ErrCompression is returned when a file cannot be compressed.
	ErrCompression = errors.New("iopkg: compression failed")

	// ErrIO is returned when staging or writing the package fails.
	ErrIO = errors.New("iopkg: i/o failed")

	// ErrEmptyInput is returned when the source tree contains no files.
	ErrEmptyInput = errors.New("iopkg: no input files")

	// ErrSerialization is returned when the table of contents cannot be encoded.
	ErrSerialization = errors.New("iopkg: serialization failed")

	// ErrFormat is returned when a package is malformed.
	ErrFormat = errors.New("iopkg: invalid package")

	// ErrChecksumMismatch is returned when payload bytes do not match their checksum.
	ErrChecksumMismatch = errors.New("iopkg: checksum mismatch")

	// ErrNotFound is returned when a path is not present in the package.
	ErrNotFound = errors.New("iopkg: entry not found")
)

var kindSentinels = map[Kind]error{
	KindScan:          ErrScan,
	KindCompression:   ErrCompression,
	KindIO:            ErrIO,
	KindEmptyInput:    ErrEmptyInput,
	KindSerialization: ErrSerialization,
	KindFormat:        ErrFormat,
	KindChecksum:      ErrChecksumMismatch,
	KindNotFound:      ErrNotFound,
}

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindScan:
		return "scan"
	case KindCompression:
		return "compression"
	case KindIO:
		return "io"
	case KindEmptyInput:
		return "empty_input"
	case KindSerialization:
		return "serialization"
	case KindFormat:
		return "format"
	case KindChecksum:
		return "checksum"
	case KindNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Error describes a failed operation on a single path or on the package as
// a whole.
type Error struct {
	Kind Kind
	// Op names the pipeline stage, for example "scan" or "compress".
	Op string
	// Path is the entry path, or empty when the failure is not tied to one.
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := "iopkg: " + e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	} else if s, ok := kindSentinels[e.Kind]; ok {
		msg += ": " + s.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the kind of the first *Error in err's chain. Without one,
// it returns the lowest Kind whose sentinel err matches.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for kind := KindScan; kind <= KindNotFound; kind++ {
		if errors.Is(err, kindSentinels[kind]) {
			return kind
		}
	}
	return KindUnknown
}

func newError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}
