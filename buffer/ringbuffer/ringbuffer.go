// Package ringbuffer provides a fixed-size circular buffer of log records which overwrites the oldest records
// when full
package ringbuffer

import (
	"errors"
	"fmt"
	"sync"
)

// ErrRecordTooLarge is returned when enqueuing a record longer than the slot size
var ErrRecordTooLarge = errors.New("record too large")

// RingBuffer holds up to N most recently written records in preallocated slots
//
// writeSeq and readSeq increase monotonically and are mapped to slots by seq & mask. The buffer never holds more
// than N unread records: writing the (N+1)th unread record moves readSeq forward, dropping the oldest one.
//
// All methods are safe to be called concurrently. Normally there is one producer calling Enqueue and one
// consumer calling Dequeue.
type RingBuffer struct {
	lock     sync.Mutex
	writeSeq uint64
	readSeq  uint64
	mask     uint64
	slotSize int
	lengths  []int  // length of record in each slot
	storage  []byte // all slots in one block, slot i at [i*slotSize, (i+1)*slotSize)
}

// NewRingBuffer creates a RingBuffer with the given numbers of slots, each able to hold a record up to slotSize
//
// numSlots must be a power of two
func NewRingBuffer(numSlots int, slotSize int) (*RingBuffer, error) {
	if numSlots <= 0 || numSlots&(numSlots-1) != 0 {
		return nil, fmt.Errorf("numbers of slots must be a power of two: %d", numSlots)
	}
	if slotSize <= 0 {
		return nil, fmt.Errorf("invalid slot size: %d", slotSize)
	}
	return &RingBuffer{
		lock:     sync.Mutex{},
		writeSeq: 0,
		readSeq:  0,
		mask:     uint64(numSlots - 1),
		slotSize: slotSize,
		lengths:  make([]int, numSlots),
		storage:  make([]byte, numSlots*slotSize),
	}, nil
}

// Enqueue copies the record into the next slot
//
// Returns true if the oldest unread record has been overwritten to make room, or error if the record is larger
// than the slot size, in which case nothing is written
func (buf *RingBuffer) Enqueue(record []byte) (bool, error) {
	if len(record) > buf.slotSize {
		return false, fmt.Errorf("%w: %d bytes, max %d", ErrRecordTooLarge, len(record), buf.slotSize)
	}

	buf.lock.Lock()
	defer buf.lock.Unlock()

	index := buf.writeSeq & buf.mask
	offset := int(index) * buf.slotSize
	buf.lengths[index] = copy(buf.storage[offset:offset+buf.slotSize], record)
	buf.writeSeq++

	// recompute from writeSeq after each single write, which is only equivalent to dropping the oldest one
	// because writes are serialized
	if buf.writeSeq-buf.readSeq > buf.capacity() {
		buf.readSeq = buf.writeSeq - buf.capacity()
		return true, nil
	}
	return false, nil
}

// Dequeue copies the oldest unread record to dst[:0] and returns the result
//
// Returns false without blocking if there is nothing to read. No allocation is made if dst has enough capacity.
func (buf *RingBuffer) Dequeue(dst []byte) ([]byte, bool) {
	buf.lock.Lock()
	defer buf.lock.Unlock()

	if buf.writeSeq == buf.readSeq {
		return dst[:0], false
	}

	index := buf.readSeq & buf.mask
	offset := int(index) * buf.slotSize
	result := append(dst[:0], buf.storage[offset:offset+buf.lengths[index]]...)
	buf.readSeq++
	return result, true
}

// Len returns the numbers of unread records
func (buf *RingBuffer) Len() int {
	buf.lock.Lock()
	defer buf.lock.Unlock()
	return int(buf.writeSeq - buf.readSeq)
}

// Capacity returns the numbers of slots
func (buf *RingBuffer) Capacity() int {
	return int(buf.capacity())
}

// SlotSize returns the max length of one record
func (buf *RingBuffer) SlotSize() int {
	return buf.slotSize
}

func (buf *RingBuffer) capacity() uint64 {
	return buf.mask + 1
}
