package tcplistener

import (
	"bytes"

	"github.com/relex/udpc-agent/util"
)

type ioReader func(p []byte) (n int, err error)
type recordConsumer func(s []byte)

// lineReader splits a byte stream into lines on a preallocated buffer, without heap allocation
//
// Lines are passed to consumeRecord without the trailing newline. Empty lines are skipped.
//
// A line longer than maxLineLength is cut: the head is consumed as soon as it's found and the remaining part
// is discarded until the next newline.
type lineReader struct {
	readInput     ioReader       // io.Reader.Read
	consumeRecord recordConsumer // callback to consume a line, only valid during the call
	maxLineLength int
	buffer        []byte // preallocated buffer
	offsetAppend  int    // point to end of buffered (unfinished) line
	discarding    bool   // true if in the remaining part of an oversized line
}

func newLineReader(read ioReader, minBufferSize, maxLineLength int, consume recordConsumer) *lineReader {
	return &lineReader{
		readInput:     read,
		consumeRecord: consume,
		maxLineLength: maxLineLength,
		buffer:        make([]byte, util.MaxInt(minBufferSize, maxLineLength*2)),
		offsetAppend:  0,
		discarding:    false,
	}
}

// Read reads next block to buffer and consumes all completed lines in it
func (lr *lineReader) Read() error {
	n, err := lr.readInput(lr.buffer[lr.offsetAppend:])
	if n > 0 {
		lr.processBuffer(lr.offsetAppend + n)
	}
	return err
}

// Flush considers the buffered unfinished line completed and consumes it
func (lr *lineReader) Flush() {
	if lr.offsetAppend > 0 && !lr.discarding {
		lr.consumeRecord(lr.buffer[:lr.offsetAppend])
	}
	lr.offsetAppend = 0
	lr.discarding = false
}

// Pending returns the length of buffered unfinished line
func (lr *lineReader) Pending() int {
	return lr.offsetAppend
}

func (lr *lineReader) processBuffer(bufferEnd int) {
	buffer := lr.buffer[:bufferEnd]
	lineStart := 0
	searchStart := lr.offsetAppend // no newline before it
	for {
		nextEndRel := bytes.IndexByte(buffer[searchStart:], '\n')
		if nextEndRel == -1 {
			break
		}
		nextEnd := searchStart + nextEndRel
		if lr.discarding {
			lr.discarding = false
		} else if nextEnd > lineStart {
			lr.consumeRecord(buffer[lineStart:nextEnd])
		}
		lineStart = nextEnd + 1
		searchStart = lineStart
	}

	rest := buffer[lineStart:]
	if len(rest) >= lr.maxLineLength {
		if !lr.discarding {
			lr.consumeRecord(rest[:lr.maxLineLength])
			lr.discarding = true
		}
		lr.offsetAppend = 0
		return
	}
	// relocate unfinished line to the beginning
	lr.offsetAppend = copy(lr.buffer, rest)
}
