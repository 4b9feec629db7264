package queuefile

import "encoding/binary"

// HeaderLen is the size in bytes of the fixed file header at offset 0.
const HeaderLen = 16

// InitialLength is the default file length used when creating a new queue
// file, and the floor below which fileLength may never drop (invariant 1).
const InitialLength = 4096

// fileHeader is the decoded form of the 16-byte big-endian file header.
//
//	off  field         meaning
//	0    fileLength     total file length F
//	4    elementCount   number of records currently in the queue
//	8    firstPos       physical offset of the head record; 0 if empty
//	12   lastPos        physical offset of the tail record; 0 if empty
type fileHeader struct {
	fileLength   uint32
	elementCount uint32
	firstPos     uint32
	lastPos      uint32
}

// encodeHeader serializes h into a 16-byte big-endian buffer.
func encodeHeader(h fileHeader) [HeaderLen]byte {
	var buf [HeaderLen]byte

	binary.BigEndian.PutUint32(buf[0:4], h.fileLength)
	binary.BigEndian.PutUint32(buf[4:8], h.elementCount)
	binary.BigEndian.PutUint32(buf[8:12], h.firstPos)
	binary.BigEndian.PutUint32(buf[12:16], h.lastPos)

	return buf
}

// decodeHeader parses a header from a buffer of at least HeaderLen bytes.
func decodeHeader(buf []byte) fileHeader {
	return fileHeader{
		fileLength:   binary.BigEndian.Uint32(buf[0:4]),
		elementCount: binary.BigEndian.Uint32(buf[4:8]),
		firstPos:     binary.BigEndian.Uint32(buf[8:12]),
		lastPos:      binary.BigEndian.Uint32(buf[12:16]),
	}
}
