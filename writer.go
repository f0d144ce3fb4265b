package iopkg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/meigma/iopkg/internal/sizing"
)

// HeaderSize is the length of the little-endian TOC length prefix.
const HeaderSize = 4

// MaxTOCSize is the largest encoded table of contents the header can
// describe.
const MaxTOCSize = math.MaxUint32

// WriteTo writes a complete package to dst: the 4-byte little-endian
// length of the encoded TOC, the TOC itself, then payload copied unchanged.
//
// payload must hold exactly toc.PayloadSize() bytes; a shorter or longer
// stream is an error. WriteTo returns the number of bytes written.
func WriteTo(dst io.Writer, toc *TOC, payload io.Reader) (int64, error) {
	tocData, err := toc.MarshalJSON()
	if err != nil {
		return 0, newError(KindSerialization, "encode", "", err)
	}
	if uint64(len(tocData)) > MaxTOCSize {
		return 0, newError(KindSerialization, "encode", "",
			fmt.Errorf("table of contents is %d bytes, limit %d", len(tocData), uint64(MaxTOCSize)))
	}
	total, ok := toc.PayloadSize()
	if !ok {
		return 0, newError(KindSerialization, "encode", "", errors.New("payload size overflows uint64"))
	}
	payloadSize, ok := sizing.ToInt64(total)
	if !ok {
		return 0, newError(KindSerialization, "encode", "", errors.New("payload size overflows int64"))
	}

	var header [HeaderSize]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(tocData))) //nolint:gosec // bounded by MaxTOCSize above

	var written int64
	n, err := dst.Write(header[:])
	written += int64(n)
	if err != nil {
		return written, newError(KindIO, "write header", "", err)
	}
	n, err = dst.Write(tocData)
	written += int64(n)
	if err != nil {
		return written, newError(KindIO, "write toc", "", err)
	}

	copied, err := io.CopyN(dst, payload, payloadSize)
	written += copied
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("payload is %d bytes, table of contents expects %d", copied, payloadSize)
		}
		return written, newError(KindIO, "write payload", "", err)
	}

	var extra [1]byte
	if n, _ := io.ReadFull(payload, extra[:]); n > 0 {
		return written, newError(KindIO, "write payload", "",
			fmt.Errorf("payload is longer than the %d bytes the table of contents expects", payloadSize))
	}
	return written, nil
}
