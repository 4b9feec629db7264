package queuefile

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/diskq/queuefile/internal/fileio"
)

// defaultMaxFileLength is the implementation-defined ceiling on fileLength.
// Header fields are 32-bit big-endian words, so the ceiling is kept below
// the 31-bit boundary to leave headroom against overflow in the doubling
// arithmetic (see expandIfNecessary).
const defaultMaxFileLength = math.MaxInt32 - HeaderLen

// zeroWriteCap bounds the best-effort zeroing Remove performs on a retired
// element. Zeroing is hygiene, not correctness (§7): it is capped so that
// removing a very large record doesn't turn a cheap pointer-advance into a
// full-payload write.
const zeroWriteCap = 4096

// OpenOptions configures how a queue file is created when it doesn't yet
// exist, or interpreted when it does.
type OpenOptions struct {
	// InitialLength overrides the file length used to create a new queue.
	// Floored at InitialLength (4096) per invariant 1 regardless of what is
	// passed; zero means "use the default".
	InitialLength uint32

	// MaxFileLength overrides the too-large ceiling for expansion. Zero
	// means "use the default" (defaultMaxFileLength).
	MaxFileLength uint32
}

// DefaultOpenOptions returns the options used by Open.
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{
		InitialLength: InitialLength,
		MaxFileLength: defaultMaxFileLength,
	}
}

func (o OpenOptions) normalized() OpenOptions {
	if o.InitialLength < InitialLength {
		o.InitialLength = InitialLength
	}

	if o.MaxFileLength == 0 || o.MaxFileLength > defaultMaxFileLength {
		o.MaxFileLength = defaultMaxFileLength
	}

	return o
}

// QueueFile is a durable FIFO byte-record queue backed by a single file.
//
// All exported methods take an internal mutex, so a single *QueueFile may be
// shared across goroutines; see the package doc comment for what that
// guarantee does and does not cover.
type QueueFile struct {
	mu sync.Mutex

	io     fileio.File
	closed bool

	initialLength uint32
	maxFileLength uint32

	fileLength   uint32
	elementCount uint32
	first        elementIndex
	last         elementIndex
}

// Open opens (or creates) the queue file at path using the default options.
func Open(path string) (*QueueFile, error) {
	return OpenPath(path, DefaultOpenOptions())
}

// OpenPath opens (or creates) the queue file at path using the given
// options, backed by the real filesystem.
func OpenPath(path string, opts OpenOptions) (*QueueFile, error) {
	f, err := fileio.OpenReal(path)
	if err != nil {
		return nil, fmt.Errorf("opening queue file: %w", err)
	}

	q, err := OpenFile(f, opts)
	if err != nil {
		_ = f.Close()

		return nil, err
	}

	return q, nil
}

// OpenFile builds a QueueFile atop an already-open [fileio.File]. This is
// the entry point tests (and the CLI's fault-injection commands) use to
// wrap the handle in a [fileio.Fault] decorator before handing it to the
// engine.
func OpenFile(f fileio.File, opts OpenOptions) (*QueueFile, error) {
	opts = opts.normalized()

	length, err := f.Len()
	if err != nil {
		return nil, fmt.Errorf("stat queue file: %w", err)
	}

	q := &QueueFile{
		io:            f,
		initialLength: opts.InitialLength,
		maxFileLength: opts.MaxFileLength,
	}

	if length == 0 {
		if err := q.initializeEmpty(); err != nil {
			return nil, fmt.Errorf("initializing new queue file: %w", err)
		}

		return q, nil
	}

	if err := q.loadAndValidate(uint32(length)); err != nil {
		return nil, err
	}

	return q, nil
}

// initializeEmpty lays out a fresh, empty queue file: the ring is zeroed and
// the header commits (fileLength=initialLength, elementCount=0, firstPos=0,
// lastPos=0).
func (q *QueueFile) initializeEmpty() error {
	if err := q.io.Truncate(int64(q.initialLength)); err != nil {
		return err
	}

	zeros := make([]byte, q.initialLength)
	if _, err := q.io.WriteAt(zeros, 0); err != nil {
		return err
	}

	q.fileLength = q.initialLength
	q.elementCount = 0
	q.first = emptyElementIndex
	q.last = emptyElementIndex

	return q.writeHeader()
}

// loadAndValidate reads the header of an existing file and validates it per
// the "hard error on corruption" resolution of the header-validation-strictness
// open question: fileLength must match the actual file size, firstPos/lastPos
// must be both zero or both in range, and the length word at each of those
// positions must be a plausible element length.
func (q *QueueFile) loadAndValidate(actualLength uint32) error {
	if actualLength < HeaderLen {
		return fmt.Errorf("%w: file length %d shorter than header", ErrCorrupt, actualLength)
	}

	buf := make([]byte, HeaderLen)
	if _, err := q.io.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}

	h := decodeHeader(buf)

	if h.fileLength != actualLength {
		return fmt.Errorf("%w: header file length %d does not match actual length %d", ErrCorrupt, h.fileLength, actualLength)
	}

	if h.fileLength < InitialLength {
		return fmt.Errorf("%w: file length %d below minimum %d", ErrCorrupt, h.fileLength, InitialLength)
	}

	if h.elementCount == 0 {
		if h.firstPos != 0 || h.lastPos != 0 {
			return fmt.Errorf("%w: empty queue with nonzero head/tail position", ErrCorrupt)
		}
	} else {
		if !inRing(h.firstPos, h.fileLength) || !inRing(h.lastPos, h.fileLength) {
			return fmt.Errorf("%w: head/tail position out of range", ErrCorrupt)
		}
	}

	q.fileLength = h.fileLength
	q.elementCount = h.elementCount
	q.first = elementIndex{pos: h.firstPos}
	q.last = elementIndex{pos: h.lastPos}

	if h.elementCount == 0 {
		return nil
	}

	firstLen, err := q.readElementLength(h.firstPos)
	if err != nil {
		return fmt.Errorf("reading head element header: %w", err)
	}

	if firstLen > h.fileLength-HeaderLen {
		return fmt.Errorf("%w: implausible head element length %d", ErrCorrupt, firstLen)
	}

	q.first.len = firstLen

	lastLen, err := q.readElementLength(h.lastPos)
	if err != nil {
		return fmt.Errorf("reading tail element header: %w", err)
	}

	if lastLen > h.fileLength-HeaderLen {
		return fmt.Errorf("%w: implausible tail element length %d", ErrCorrupt, lastLen)
	}

	q.last.len = lastLen

	return nil
}

func inRing(pos, fileLength uint32) bool {
	return pos >= HeaderLen && pos < fileLength
}

func (q *QueueFile) readElementLength(pos uint32) (uint32, error) {
	buf, err := ringRead(q.io, q.fileLength, pos, 4)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint32(buf), nil
}

// Size returns the number of records currently in the queue.
func (q *QueueFile) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return int(q.elementCount)
}

// IsEmpty reports whether the queue has zero records.
func (q *QueueFile) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.elementCount == 0
}

// Stat reports a snapshot of the queue's on-disk geometry, for diagnostics.
type Stat struct {
	FileLength   uint32
	ElementCount uint32
	UsedBytes    uint32
	FreeBytes    uint32
	FirstPos     uint32
	LastPos      uint32
}

// Stat returns a snapshot of the queue's current geometry.
func (q *QueueFile) Stat() Stat {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stat{
		FileLength:   q.fileLength,
		ElementCount: q.elementCount,
		UsedBytes:    usedBytes(q.fileLength, q.elementCount, q.first, q.last),
		FreeBytes:    freeBytes(q.fileLength, q.elementCount, q.first, q.last),
		FirstPos:     q.first.pos,
		LastPos:      q.last.pos,
	}
}

// Peek returns a copy of the head record without removing it. ok is false
// (with a nil error) if the queue is empty.
func (q *QueueFile) Peek() (data []byte, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, false, ErrClosed
	}

	if q.elementCount == 0 {
		return nil, false, nil
	}

	length, err := q.readElementLength(q.first.pos)
	if err != nil {
		return nil, false, fmt.Errorf("reading head element header: %w", err)
	}

	if length == 0 {
		return []byte{}, true, nil
	}

	payload, err := ringRead(q.io, q.fileLength, q.wrap(q.first.pos+4), length)
	if err != nil {
		return nil, false, fmt.Errorf("reading head payload: %w", err)
	}

	return payload, true, nil
}

// Add appends data to the tail of the queue, expanding the file first if
// necessary. A nil or zero-length data is valid: only the 4-byte element
// header is written.
//
// On failure, the queue's observable state (in memory and on disk) is left
// exactly as it was before the call: partially written ring bytes, if any,
// are unreferenced until a future successful commit overlays them.
func (q *QueueFile) Add(data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	if uint64(len(data)) > math.MaxUint32-4 {
		return ErrBadArgument
	}

	n := uint32(len(data))

	if err := q.expandIfNecessary(4 + n); err != nil {
		return err
	}

	wasEmpty := q.elementCount == 0

	var newLastPos uint32
	if wasEmpty {
		newLastPos = HeaderLen
	} else {
		newLastPos = q.wrap(q.last.pos + 4 + q.last.len)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], n)

	if err := q.ringWrite(newLastPos, lenBuf[:]); err != nil {
		return fmt.Errorf("writing element header: %w", err)
	}

	if n > 0 {
		if err := q.ringWrite(q.wrap(newLastPos+4), data); err != nil {
			return fmt.Errorf("writing element payload: %w", err)
		}
	}

	prevFirst, prevLast, prevCount := q.first, q.last, q.elementCount

	newLast := elementIndex{pos: newLastPos, len: n}
	q.last = newLast

	if wasEmpty {
		q.first = newLast
	}

	q.elementCount++

	if err := q.writeHeader(); err != nil {
		q.first, q.last, q.elementCount = prevFirst, prevLast, prevCount

		return fmt.Errorf("committing header: %w", err)
	}

	return nil
}

// Remove advances the head past the first record. Returns ErrEmpty if the
// queue has no records.
func (q *QueueFile) Remove() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	if q.elementCount == 0 {
		return ErrEmpty
	}

	q.zeroRemovedElementBestEffort()

	var newFirst elementIndex

	if q.elementCount > 1 {
		newFirstPos := q.wrap(q.first.pos + 4 + q.first.len)

		newFirstLen, err := q.readElementLength(newFirstPos)
		if err != nil {
			return fmt.Errorf("reading new head element header: %w", err)
		}

		newFirst = elementIndex{pos: newFirstPos, len: newFirstLen}
	} else {
		newFirst = emptyElementIndex
	}

	prevFirst, prevLast, prevCount := q.first, q.last, q.elementCount

	q.first = newFirst
	q.elementCount--

	if q.elementCount == 0 {
		q.last = emptyElementIndex
	}

	if err := q.writeHeader(); err != nil {
		q.first, q.last, q.elementCount = prevFirst, prevLast, prevCount

		return fmt.Errorf("committing header: %w", err)
	}

	return nil
}

// zeroRemovedElementBestEffort overwrites the retired head element's header
// and a bounded prefix of its payload with zeros. A failure here never
// affects the Remove outcome (§7): it is pure hygiene, run before the
// commit point so it can never be mistaken for one.
func (q *QueueFile) zeroRemovedElementBestEffort() {
	n := 4 + q.first.len
	if n > zeroWriteCap {
		n = zeroWriteCap
	}

	_ = q.ringWrite(q.first.pos, make([]byte, n))
}

// Clear truncates the queue back to an empty file of initialLength.
func (q *QueueFile) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	if err := q.io.Truncate(int64(q.initialLength)); err != nil {
		return fmt.Errorf("truncating: %w", err)
	}

	zeros := make([]byte, q.initialLength-HeaderLen)
	if _, err := q.io.WriteAt(zeros, HeaderLen); err != nil {
		return fmt.Errorf("zeroing ring: %w", err)
	}

	if err := q.io.Sync(); err != nil {
		return fmt.Errorf("syncing: %w", err)
	}

	prevFileLength, prevFirst, prevLast, prevCount := q.fileLength, q.first, q.last, q.elementCount

	q.fileLength = q.initialLength
	q.first = emptyElementIndex
	q.last = emptyElementIndex
	q.elementCount = 0

	if err := q.writeHeader(); err != nil {
		q.fileLength, q.first, q.last, q.elementCount = prevFileLength, prevFirst, prevLast, prevCount

		return fmt.Errorf("committing header: %w", err)
	}

	return nil
}

// Close releases the underlying file handle. Subsequent Add, Peek, Remove
// and Clear calls fail with ErrClosed; Size, IsEmpty and Stat keep
// reporting the state cached at close. Close is idempotent.
func (q *QueueFile) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true

	return q.io.Close()
}

// expandIfNecessary doubles fileLength until the ring has room for need
// more bytes, relocating any wrapped prefix to the new physical tail so
// record order is preserved across the wrap boundary. The physical copy
// happens before the header commit, so a crash mid-expansion leaves the old
// header (and thus the old, still-consistent geometry) in force; only the
// final header write promotes the new geometry.
func (q *QueueFile) expandIfNecessary(need uint32) error {
	for freeBytes(q.fileLength, q.elementCount, q.first, q.last) < need {
		oldFileLength := q.fileLength

		newLength := oldFileLength * 2
		if newLength <= oldFileLength || newLength > q.maxFileLength {
			return ErrTooLarge
		}

		if err := q.io.Truncate(int64(newLength)); err != nil {
			return fmt.Errorf("extending file: %w", err)
		}

		zeros := make([]byte, newLength-oldFileLength)
		if _, err := q.io.WriteAt(zeros, int64(oldFileLength)); err != nil {
			return fmt.Errorf("zeroing expanded region: %w", err)
		}

		if err := q.io.Sync(); err != nil {
			return fmt.Errorf("syncing expanded region: %w", err)
		}

		newLast := q.last

		if q.elementCount > 0 {
			// The used region wraps whenever the tail element ends at or before
			// the head, including a tail element that starts at or after the
			// head but straddles the old physical end.
			endOfLast := wrapPos(q.last.pos+4+q.last.len, oldFileLength)

			if endOfLast <= q.first.pos {
				wrappedLen := endOfLast - HeaderLen

				wrapped, err := ringRead(q.io, oldFileLength, HeaderLen, wrappedLen)
				if err != nil {
					return fmt.Errorf("reading wrapped prefix: %w", err)
				}

				if _, err := q.io.WriteAt(wrapped, int64(oldFileLength)); err != nil {
					return fmt.Errorf("relocating wrapped prefix: %w", err)
				}

				if err := q.io.Sync(); err != nil {
					return fmt.Errorf("syncing relocated prefix: %w", err)
				}
			}

			if q.last.pos < q.first.pos {
				newLast.pos = q.last.pos + (oldFileLength - HeaderLen)
			}
		}

		prevFileLength, prevLast := q.fileLength, q.last

		q.fileLength = newLength
		q.last = newLast

		if err := q.writeHeader(); err != nil {
			q.fileLength, q.last = prevFileLength, prevLast

			return fmt.Errorf("committing expanded header: %w", err)
		}
	}

	return nil
}

// writeHeader is the commit point: a single positional write of the 16-byte
// header at offset 0, followed by sync. Every successful mutating operation
// ends here; a failure here leaves the in-memory state exactly as the
// caller left it before committing, so it can revert.
func (q *QueueFile) writeHeader() error {
	buf := encodeHeader(fileHeader{
		fileLength:   q.fileLength,
		elementCount: q.elementCount,
		firstPos:     q.first.pos,
		lastPos:      q.last.pos,
	})

	if _, err := q.io.WriteAt(buf[:], 0); err != nil {
		return err
	}

	return q.io.Sync()
}

func (q *QueueFile) wrap(pos uint32) uint32 {
	return wrapPos(pos, q.fileLength)
}

func (q *QueueFile) ringWrite(pos uint32, data []byte) error {
	return ringWrite(q.io, q.fileLength, pos, data)
}
