package protocol

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	MagicNumber = 0x4E

	OpInsert  = 0x01 // Key=[id][x][y]
	OpGet     = 0x02 // Key=[x][y]
	OpRemove  = 0x03 // Key=[x][y]
	OpRange   = 0x04 // Key=[x1][y1][x2][y2]
	OpRadius  = 0x05 // Key=[x][y][r]
	OpNearest = 0x06 // Key=[x][y], Value=[k 4B] (optional)
	OpBatch   = 0x07 // Value=points
	OpQuery   = 0x08 // Value=query text

	RespOK   = 0x00
	RespErr  = 0xFF
	RespVal  = 0x01
	RespNone = 0x02
)

var ErrInvalidMagic = errors.New("protocol: invalid magic number")

type Packet struct {
	Op    byte
	Key   []byte
	Value []byte
}

func Encode(w io.Writer, op byte, key []byte, value []byte) error {
	header := make([]byte, 8)
	header[0] = MagicNumber
	header[1] = op
	binary.BigEndian.PutUint16(header[2:4], uint16(len(key)))
	binary.BigEndian.PutUint32(header[4:8], uint32(len(value)))

	if _, err := w.Write(header); err != nil {
		return errors.Wrap(err, "write header")
	}
	if len(key) > 0 {
		if _, err := w.Write(key); err != nil {
			return errors.Wrap(err, "write key")
		}
	}
	if len(value) > 0 {
		if _, err := w.Write(value); err != nil {
			return errors.Wrap(err, "write value")
		}
	}
	return nil
}

func Decode(r io.Reader) (*Packet, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	if header[0] != MagicNumber {
		return nil, ErrInvalidMagic
	}

	op := header[1]
	kLen := binary.BigEndian.Uint16(header[2:4])
	vLen := binary.BigEndian.Uint32(header[4:8])

	key := make([]byte, kLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Wrapf(err, "read %d byte key", kLen)
	}

	val := make([]byte, vLen)
	if _, err := io.ReadFull(r, val); err != nil {
		return nil, errors.Wrapf(err, "read %d byte value", vLen)
	}

	return &Packet{Op: op, Key: key, Value: val}, nil
}
