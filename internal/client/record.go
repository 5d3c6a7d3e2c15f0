package client

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/orbitalrush/grid/internal/codec"
	"github.com/orbitalrush/grid/internal/proto"
)

// inputRecordMaxSize bounds a single encoded InputFrame written to or
// read from a record/replay file; generous relative to InputFrame's
// actual wire size, just enough to catch a corrupt length prefix.
const inputRecordMaxSize = 1 << 16

// Recorder appends every committed InputFrame's raw codec bytes to a
// file, each one length-prefixed (§6: "record every committed
// InputFrame as its serialized bytes"). Unlike the network wire
// format, recorded frames are not S2-compressed: a frame is a handful
// of bytes, and a raw stream matters more for replay-determinism
// tooling than the file size does.
type Recorder struct {
	w   *bufio.Writer
	f   *os.File
	buf []byte
}

// NewRecorder creates (or truncates) path and returns a Recorder ready
// to append frames.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Recorder{w: bufio.NewWriter(f), f: f, buf: make([]byte, inputRecordMaxSize)}, nil
}

// Write appends one committed InputFrame.
func (r *Recorder) Write(frame *proto.InputFrame) error {
	enc := codec.NewEncoder(r.buf)
	if res := frame.Visit(enc); res.Failed {
		return errors.New("client: encoding recorded input frame: " + res.Expr)
	}
	data := enc.Bytes()

	var lenPrefix [4]byte
	binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(data)))
	if _, err := r.w.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err := r.w.Write(data)
	return err
}

// Close flushes buffered writes and closes the underlying file.
func (r *Recorder) Close() error {
	if err := r.w.Flush(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}

// Replayer reads a Recorder's file back, one InputFrame at a time.
type Replayer struct {
	r   *bufio.Reader
	f   *os.File
	buf []byte
}

// ErrReplayExhausted is returned by Next once every recorded frame has
// been consumed (§6: "on EOF, exit cleanly if the player is in a Medbay").
var ErrReplayExhausted = errors.New("client: replay input exhausted")

// OpenReplayer opens path for sequential replay.
func OpenReplayer(path string) (*Replayer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Replayer{r: bufio.NewReader(f), f: f, buf: make([]byte, inputRecordMaxSize)}, nil
}

// Next decodes the next recorded InputFrame, or returns
// ErrReplayExhausted once the file is fully consumed.
func (p *Replayer) Next() (proto.InputFrame, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(p.r, lenPrefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return proto.InputFrame{}, ErrReplayExhausted
		}
		return proto.InputFrame{}, err
	}
	n := binary.LittleEndian.Uint32(lenPrefix[:])
	if n > inputRecordMaxSize {
		return proto.InputFrame{}, errors.New("client: recorded input frame exceeds max size")
	}
	if _, err := io.ReadFull(p.r, p.buf[:n]); err != nil {
		return proto.InputFrame{}, err
	}

	var frame proto.InputFrame
	dec := codec.NewDecoder(p.buf[:n])
	if res := frame.Visit(dec); res.Failed {
		return proto.InputFrame{}, errors.New("client: decoding recorded input frame: " + res.Expr)
	}
	return frame, nil
}

// Close releases the underlying file.
func (p *Replayer) Close() error {
	return p.f.Close()
}
