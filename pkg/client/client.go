package client

import (
	"encoding/binary"
	"net"
	"time"

	"github.com/pkg/errors"

	"neurogeo/pkg/common"
	"neurogeo/pkg/protocol"
)

type Point = common.Point[float64]

// ServerError is an error reported by the server.
type ServerError string

func (e ServerError) Error() string {
	return "server: " + string(e)
}

var ErrUnexpectedResponse = errors.New("client: unexpected response")

type Client struct {
	conn net.Conn
	addr string
}

func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	return &Client{
		conn: conn,
		addr: addr,
	}, nil
}

// Insert stores p and returns the point it replaced, if any.
func (c *Client) Insert(p Point) (Point, bool, error) {
	resp, err := c.roundTrip(protocol.OpInsert, protocol.EncodePoint(p), nil)
	if err != nil {
		return Point{}, false, err
	}
	if resp.Op != protocol.RespOK {
		return Point{}, false, ErrUnexpectedResponse
	}
	if len(resp.Value) == 0 {
		return Point{}, false, nil
	}
	old, err := protocol.DecodePoint(resp.Value)
	return old, err == nil, err
}

func (c *Client) BatchInsert(ps []Point) error {
	resp, err := c.roundTrip(protocol.OpBatch, nil, protocol.EncodePoints(ps))
	if err != nil {
		return err
	}
	if resp.Op != protocol.RespOK {
		return ErrUnexpectedResponse
	}
	return nil
}

func (c *Client) Get(x, y float64) (Point, bool, error) {
	resp, err := c.roundTrip(protocol.OpGet, protocol.EncodeFloats(x, y), nil)
	if err != nil {
		return Point{}, false, err
	}
	return pointOrNone(resp)
}

func (c *Client) Remove(x, y float64) (Point, bool, error) {
	resp, err := c.roundTrip(protocol.OpRemove, protocol.EncodeFloats(x, y), nil)
	if err != nil {
		return Point{}, false, err
	}
	return pointOrNone(resp)
}

func (c *Client) Range(bl, tr [2]float64) ([]Point, error) {
	return c.points(protocol.OpRange, protocol.EncodeFloats(bl[0], bl[1], tr[0], tr[1]), nil)
}

func (c *Client) Radius(center [2]float64, r float64) ([]Point, error) {
	return c.points(protocol.OpRadius, protocol.EncodeFloats(center[0], center[1], r), nil)
}

func (c *Client) Nearest(q [2]float64) (Point, bool, error) {
	resp, err := c.roundTrip(protocol.OpNearest, protocol.EncodeFloats(q[0], q[1]), nil)
	if err != nil {
		return Point{}, false, err
	}
	return pointOrNone(resp)
}

func (c *Client) KNearest(q [2]float64, k int) ([]Point, error) {
	kBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(kBuf, uint32(k))
	return c.points(protocol.OpNearest, protocol.EncodeFloats(q[0], q[1]), kBuf)
}

// Query runs a statement such as "SELECT * FROM points NEAREST(1, 2)".
func (c *Client) Query(q string) ([]Point, error) {
	return c.points(protocol.OpQuery, nil, []byte(q))
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) points(op byte, key, val []byte) ([]Point, error) {
	resp, err := c.roundTrip(op, key, val)
	if err != nil {
		return nil, err
	}
	if resp.Op != protocol.RespVal {
		return nil, ErrUnexpectedResponse
	}
	ps, err := protocol.DecodePoints(resp.Value)
	return ps, errors.Wrap(err, "decode points")
}

func pointOrNone(resp *protocol.Packet) (Point, bool, error) {
	switch resp.Op {
	case protocol.RespVal, protocol.RespOK:
		p, err := protocol.DecodePoint(resp.Value)
		return p, err == nil, err
	case protocol.RespNone:
		return Point{}, false, nil
	default:
		return Point{}, false, ErrUnexpectedResponse
	}
}

// roundTrip sends one request and reads its response, redialing once if
// the connection turns out to be broken.
func (c *Client) roundTrip(op byte, key, val []byte) (*protocol.Packet, error) {
	resp, err := c.send(op, key, val)
	if err != nil {
		if err := c.reconnect(); err != nil {
			return nil, err
		}
		if resp, err = c.send(op, key, val); err != nil {
			return nil, err
		}
	}
	if resp.Op == protocol.RespErr {
		return nil, ServerError(resp.Value)
	}
	return resp, nil
}

func (c *Client) send(op byte, key, val []byte) (*protocol.Packet, error) {
	if err := protocol.Encode(c.conn, op, key, val); err != nil {
		return nil, err
	}
	return protocol.Decode(c.conn)
}

func (c *Client) reconnect() error {
	c.conn.Close()
	conn, err := net.DialTimeout("tcp", c.addr, 5*time.Second)
	if err != nil {
		return errors.Wrapf(err, "redial %s", c.addr)
	}
	c.conn = conn
	return nil
}
