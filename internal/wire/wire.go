package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version     byte = 1
	kindListing byte = 1
	hdrLen           = 4 + 1 + 1 + 4 + 4
)

var (
	ErrCorrupt = errors.New("ledgercache: corrupt listing")
	magic4     = [...]byte{'L', 'D', 'G', 'R'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Listing: magic(4) | ver(1) | kind(1=listing) | count(u32 be) | plen(u32 be) | payload(plen)
//
// count is the number of entries the payload decodes to; readers compare it
// against the decoded result to catch truncated or foreign payloads.
func EncodeListing(count int, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindListing)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(count))
	buf.Write(u4[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func DecodeListing(b []byte) (count int, payload []byte, err error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version || b[5] != kindListing {
		return 0, nil, ErrCorrupt
	}

	off := 6
	count = int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4

	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if plen < 0 || plen != len(b)-off { // strict framing: no short reads, no trailing bytes
		return 0, nil, ErrCorrupt
	}

	return count, b[off:], nil
}
