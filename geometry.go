package queuefile

import "github.com/diskq/queuefile/internal/fileio"

// elementIndex identifies one record inside the ring: its physical file
// offset and its payload length. The zero value (0,0) denotes "no element"
// and is used for both first and last when the queue is empty.
type elementIndex struct {
	pos uint32
	len uint32
}

var emptyElementIndex = elementIndex{pos: 0, len: 0}

// wrapPos normalizes pos (which may have advanced past fileLength) back
// into the ring region [HeaderLen, fileLength).
func wrapPos(pos, fileLength uint32) uint32 {
	capacity := fileLength - HeaderLen

	return HeaderLen + (pos-HeaderLen)%capacity
}

// ringRead reads n bytes starting at pos, splitting the read across the
// wrap boundary (fileLength -> HeaderLen) when necessary.
func ringRead(f fileio.File, fileLength, pos, n uint32) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}

	if pos+n <= fileLength {
		if _, err := f.ReadAt(buf, int64(pos)); err != nil {
			return nil, err
		}

		return buf, nil
	}

	firstPart := fileLength - pos
	if _, err := f.ReadAt(buf[:firstPart], int64(pos)); err != nil {
		return nil, err
	}

	if _, err := f.ReadAt(buf[firstPart:], int64(HeaderLen)); err != nil {
		return nil, err
	}

	return buf, nil
}

// ringWrite writes data starting at pos, splitting the write across the
// wrap boundary when necessary.
func ringWrite(f fileio.File, fileLength, pos uint32, data []byte) error {
	n := uint32(len(data))
	if n == 0 {
		return nil
	}

	if pos+n <= fileLength {
		_, err := f.WriteAt(data, int64(pos))

		return err
	}

	firstPart := fileLength - pos
	if _, err := f.WriteAt(data[:firstPart], int64(pos)); err != nil {
		return err
	}

	_, err := f.WriteAt(data[firstPart:], int64(HeaderLen))

	return err
}

// usedBytes computes the number of ring bytes spanned by the queue's
// elements, from first.pos forward (with wrap) through the end of last.
func usedBytes(fileLength, elementCount uint32, first, last elementIndex) uint32 {
	if elementCount == 0 {
		return 0
	}

	if last.pos >= first.pos {
		return (last.pos - first.pos) + 4 + last.len
	}

	return last.pos + 4 + last.len + (fileLength - first.pos)
}

// freeBytes computes the unused ring capacity.
func freeBytes(fileLength, elementCount uint32, first, last elementIndex) uint32 {
	return (fileLength - HeaderLen) - usedBytes(fileLength, elementCount, first, last)
}
