package storage

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// [CRC32 4B] [Timestamp 8B] [Op 1B] [ID 8B] [X 8B] [Y 8B]

const (
	RecordSize = 4 + 8 + 1 + 8 + 8 + 8 // 37 Bytes
)

var (
	ErrCorrupted   = errors.New("wal: corrupted record")
	ErrCRCMismatch = errors.New("wal: crc mismatch")
)

type WAL struct {
	file *os.File
	mu   sync.Mutex
	buf  *bufio.Writer
}

func OpenWAL(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "open wal")
	}

	return &WAL{
		file: f,
		buf:  bufio.NewWriter(f),
	}, nil
}

func encodeRecord(rec Record) []byte {
	frame := make([]byte, RecordSize)
	binary.LittleEndian.PutUint64(frame[4:12], uint64(rec.Timestamp))
	frame[12] = byte(rec.Op)
	binary.LittleEndian.PutUint64(frame[13:21], uint64(int64(rec.Point.ID)))
	binary.LittleEndian.PutUint64(frame[21:29], math.Float64bits(rec.Point.X))
	binary.LittleEndian.PutUint64(frame[29:37], math.Float64bits(rec.Point.Y))
	binary.LittleEndian.PutUint32(frame[0:4], crc32.ChecksumIEEE(frame[4:]))
	return frame
}

func decodeRecord(frame []byte) (Record, error) {
	if crc32.ChecksumIEEE(frame[4:]) != binary.LittleEndian.Uint32(frame[0:4]) {
		return Record{}, ErrCRCMismatch
	}
	return Record{
		Timestamp: int64(binary.LittleEndian.Uint64(frame[4:12])),
		Op:        Op(frame[12]),
		Point: Point{
			ID: int(int64(binary.LittleEndian.Uint64(frame[13:21]))),
			X:  math.Float64frombits(binary.LittleEndian.Uint64(frame[21:29])),
			Y:  math.Float64frombits(binary.LittleEndian.Uint64(frame[29:37])),
		},
	}, nil
}

// Append logs one mutation and flushes it to the file.
func (w *WAL) Append(op Op, p Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	frame := encodeRecord(Record{Op: op, Point: p, Timestamp: time.Now().UnixNano()})
	if _, err := w.buf.Write(frame); err != nil {
		return errors.Wrap(err, "append wal")
	}
	return w.buf.Flush()
}

func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Flush()
	return w.file.Close()
}

func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return err
	}
	path := w.file.Name()
	if err := w.file.Close(); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "reopen wal")
	}
	w.file = f
	w.buf = bufio.NewWriter(f)
	return w.file.Sync()
}

func (w *WAL) Size() (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return 0, err
	}
	st, err := w.file.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

type WALIterator struct {
	reader *bufio.Reader
	file   *os.File
}

func (w *WAL) NewIterator() (*WALIterator, error) {
	f, err := os.Open(w.file.Name())
	if err != nil {
		return nil, errors.Wrap(err, "open wal iterator")
	}
	return &WALIterator{
		file:   f,
		reader: bufio.NewReader(f),
	}, nil
}

// Next returns io.EOF at a clean end of log and ErrCorrupted for a torn tail.
func (it *WALIterator) Next() (Record, error) {
	frame := make([]byte, RecordSize)
	if _, err := io.ReadFull(it.reader, frame); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Record{}, ErrCorrupted
		}
		return Record{}, err
	}
	return decodeRecord(frame)
}

func (it *WALIterator) Close() {
	it.file.Close()
}
