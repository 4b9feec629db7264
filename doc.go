// Package queuefile implements a durable, crash-resilient FIFO byte-record
// queue backed by a single regular file.
//
// Producers [QueueFile.Add] opaque byte records to the tail; consumers
// [QueueFile.Peek] the head record and [QueueFile.Remove] it to advance the
// queue. Records are stored in a ring buffer within a file that doubles in
// length on overflow; a single 16-byte header at offset 0 is the atomic
// commit point for every mutation, so the queue survives a crash or power
// loss with either a record fully visible or not visible at all.
//
// A [QueueFile] needs no external synchronization within one process:
// every exported method takes an internal lock, so a single
// *QueueFile can be shared across goroutines, but two *QueueFile values must
// never be opened against the same underlying file at once (see §5 of the
// design for why: the engine assumes exclusive ownership of the file).
package queuefile
