package iopkg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"math"
	"slices"
	"unicode/utf8"

	"github.com/meigma/iopkg/internal/sizing"
)

// Entry locates one file's payload inside a package.
type Entry struct {
	// SizeUncompressed is the original file length.
	SizeUncompressed uint64 `json:"size_uncompressed"`

	// SizeCompressed is the length of the LZ4 block in the payload region.
	SizeCompressed uint64 `json:"size_compressed"`

	// ByteOffset is the block's offset from the start of the payload
	// region, not from the start of the file.
	ByteOffset uint64 `json:"byte_offset"`

	// Checksum is the djb2 hash of the compressed bytes.
	Checksum uint32 `json:"checksum"`
}

// End returns the offset just past the entry's payload, or false if it
// overflows.
func (e Entry) End() (uint64, bool) {
	return sizing.Add(e.ByteOffset, e.SizeCompressed)
}

var (
	// ErrDuplicatePath is returned when a path is added to a TOC twice.
	ErrDuplicatePath = errors.New("iopkg: duplicate path")

	// ErrInvalidPath is returned for paths that are not clean, relative,
	// slash-separated UTF-8.
	ErrInvalidPath = errors.New("iopkg: invalid path")
)

// TOC is the table of contents: an insertion-ordered map from relative
// path to Entry. The zero value is an empty TOC ready to use.
type TOC struct {
	paths   []string
	entries map[string]Entry
}

// NewTOC returns an empty table of contents.
func NewTOC() *TOC {
	return &TOC{entries: make(map[string]Entry)}
}

// Add appends an entry. Paths must satisfy fs.ValidPath, must not be ".",
// and must be valid UTF-8. Adding a path that is already present is an
// error; the existing entry is never replaced.
func (t *TOC) Add(path string, e Entry) error {
	if path == "." || !fs.ValidPath(path) || !utf8.ValidString(path) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if t.entries == nil {
		t.entries = make(map[string]Entry)
	}
	if _, ok := t.entries[path]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicatePath, path)
	}
	t.paths = append(t.paths, path)
	t.entries[path] = e
	return nil
}

// Lookup returns the entry for path.
func (t *TOC) Lookup(path string) (Entry, bool) {
	e, ok := t.entries[path]
	return e, ok
}

// Len returns the number of entries.
func (t *TOC) Len() int {
	return len(t.paths)
}

// Paths returns the entry paths in insertion order.
func (t *TOC) Paths() []string {
	return slices.Clone(t.paths)
}

// All iterates over entries in insertion order.
func (t *TOC) All() iter.Seq2[string, Entry] {
	return func(yield func(string, Entry) bool) {
		for _, p := range t.paths {
			if !yield(p, t.entries[p]) {
				return
			}
		}
	}
}

// PayloadSize returns the sum of all compressed sizes, or false if the sum
// overflows. For a valid TOC this is the length of the payload region.
func (t *TOC) PayloadSize() (uint64, bool) {
	var total uint64
	for _, e := range t.entries {
		var ok bool
		if total, ok = sizing.Add(total, e.SizeCompressed); !ok {
			return 0, false
		}
	}
	return total, true
}

// Validate checks the layout invariants of a TOC built by this package:
// entries in insertion order are packed back to back starting at offset
// zero, and every non-empty file has a non-empty payload.
func (t *TOC) Validate() error {
	var next uint64
	for p, e := range t.All() {
		if e.ByteOffset != next {
			return fmt.Errorf("%w: %q at byte_offset %d, expected %d", ErrFormat, p, e.ByteOffset, next)
		}
		if e.SizeUncompressed > 0 && e.SizeCompressed == 0 {
			return fmt.Errorf("%w: %q has no payload for %d bytes", ErrFormat, p, e.SizeUncompressed)
		}
		end, ok := e.End()
		if !ok {
			return fmt.Errorf("%w: %q payload end overflows", ErrFormat, p)
		}
		next = end
	}
	return nil
}

// MarshalJSON encodes the TOC as a compact JSON object whose keys appear in
// insertion order. Paths are written without HTML escaping.
func (t *TOC) MarshalJSON() ([]byte, error) {
	var buf, key bytes.Buffer
	keyEnc := json.NewEncoder(&key)
	keyEnc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, p := range t.paths {
		if i > 0 {
			buf.WriteByte(',')
		}
		key.Reset()
		if err := keyEnc.Encode(p); err != nil {
			return nil, err
		}
		value, err := json.Marshal(t.entries[p])
		if err != nil {
			return nil, err
		}
		buf.Write(bytes.TrimSuffix(key.Bytes(), []byte("\n")))
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// wireEntry requires every field to be present when decoding.
type wireEntry struct {
	SizeUncompressed *uint64 `json:"size_uncompressed"`
	SizeCompressed   *uint64 `json:"size_compressed"`
	ByteOffset       *uint64 `json:"byte_offset"`
	Checksum         *uint64 `json:"checksum"`
}

func (w wireEntry) entry() (Entry, error) {
	if w.SizeUncompressed == nil || w.SizeCompressed == nil || w.ByteOffset == nil || w.Checksum == nil {
		return Entry{}, errors.New("missing field")
	}
	if *w.Checksum > math.MaxUint32 {
		return Entry{}, fmt.Errorf("checksum %d exceeds 32 bits", *w.Checksum)
	}
	return Entry{
		SizeUncompressed: *w.SizeUncompressed,
		SizeCompressed:   *w.SizeCompressed,
		ByteOffset:       *w.ByteOffset,
		Checksum:         uint32(*w.Checksum),
	}, nil
}

// UnmarshalJSON decodes a TOC, keeping the document's key order. Duplicate
// keys, invalid paths and entries with missing fields are rejected.
func (t *TOC) UnmarshalJSON(data []byte) error {
	*t = TOC{entries: make(map[string]Entry)}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		path, ok := tok.(string)
		if !ok {
			return fmt.Errorf("toc: unexpected token %v", tok)
		}
		var w wireEntry
		if err := dec.Decode(&w); err != nil {
			return fmt.Errorf("toc: entry %q: %w", path, err)
		}
		e, err := w.entry()
		if err != nil {
			return fmt.Errorf("toc: entry %q: %w", path, err)
		}
		if err := t.Add(path, e); err != nil {
			return err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("toc: trailing data after object")
	}
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("toc: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("toc: expected %q, got %v", want, tok)
	}
	return nil
}
