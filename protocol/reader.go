package protocol

import (
	"bufio"
	"errors"
	"io"
)

const readBufferSize = 4096

// Reader splits a byte stream into newline-terminated frames.
type Reader struct {
	br  *bufio.Reader
	max int
}

// NewReader returns a Reader over r that keeps at most MaxLineLength bytes
// per frame.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		br:  bufio.NewReaderSize(r, readBufferSize),
		max: MaxLineLength,
	}
}

// ReadFrame returns the next complete frame without its newline.
//
// A partial frame pending when the stream ends or fails is discarded and
// the underlying error (io.EOF on a clean close) is returned instead.
func (r *Reader) ReadFrame() ([]byte, error) {
	var frame []byte
	for {
		chunk, err := r.br.ReadSlice('\n')
		switch {
		case err == nil:
			return r.appendLimited(frame, chunk[:len(chunk)-1]), nil
		case errors.Is(err, bufio.ErrBufferFull):
			frame = r.appendLimited(frame, chunk)
		default:
			return nil, err
		}
	}
}

// appendLimited copies chunk onto frame, dropping whatever exceeds r.max.
// ReadSlice reuses its buffer, so chunk must always be copied.
func (r *Reader) appendLimited(frame, chunk []byte) []byte {
	room := r.max - len(frame)
	if room <= 0 {
		return frame
	}
	if len(chunk) > room {
		chunk = chunk[:room]
	}
	return append(frame, chunk...)
}
