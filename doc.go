// Package iopkg builds and reads IOPKG package files.
//
// A package bundles a directory tree into one file:
//
//	[0, 4)      uint32, little-endian: length L of the table of contents
//	[4, 4+L)    UTF-8 JSON table of contents
//	[4+L, ...)  payload region: one LZ4 block per file, back to back
//
// The table of contents maps each slash-separated relative path to its
// uncompressed size, compressed size, offset within the payload region and
// a djb2 checksum of the compressed bytes:
//
//	{"a.txt":{"size_uncompressed":10,"size_compressed":11,"byte_offset":0,"checksum":71262383}}
//
// Files are packed in sorted path order, so packaging an unchanged tree
// twice yields byte-identical output.
//
// # Quick Start
//
// Package a directory:
//
//	res, err := iopkg.Pack(ctx, "./data", "base.iopkg")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Digest)
//
// Read a file back:
//
//	r, err := iopkg.Open("base.iopkg")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	content, err := r.ReadFile("textures/grass.png")
//
// # Errors
//
// Failures are returned as *Error values carrying a Kind. Use errors.Is
// with the sentinels (ErrEmptyInput, ErrChecksumMismatch, ...) or KindOf to
// tell them apart.
package iopkg
