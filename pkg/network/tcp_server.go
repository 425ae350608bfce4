package network

import (
	"encoding/binary"
	"io"
	"log"
	"net"
	"sync"

	"github.com/pkg/errors"

	"neurogeo/pkg/common"
	"neurogeo/pkg/protocol"
	"neurogeo/pkg/query"
)

type Point = common.Point[float64]

// Store is what the server needs from the spatial store.
type Store interface {
	Insert(p Point) (Point, bool, error)
	BatchInsert(ps []Point) error
	Get(x, y float64) (Point, bool)
	Remove(x, y float64) (Point, bool, error)
	Range(bl, tr [2]float64) []Point
	Radius(c [2]float64, r float64) []Point
	Nearest(q [2]float64) (Point, bool)
	KNearest(q [2]float64, k int) []Point
	Execute(stmt *query.Stmt) ([]Point, error)
}

type TCPServer struct {
	store Store

	mu       sync.Mutex
	listener net.Listener
}

func NewTCPServer(store Store) *TCPServer {
	return &TCPServer{store: store}
}

func (s *TCPServer) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections until the listener is closed.
func (s *TCPServer) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	log.Printf("[TCP] Listening on %s (Binary Protocol)", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("[TCP] Accept error: %v", err)
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *TCPServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *TCPServer) handleConn(conn net.Conn) {
	defer conn.Close()

	for {
		req, err := protocol.Decode(conn)
		if err != nil {
			if errors.Cause(err) != io.EOF {
				log.Printf("[TCP] Decode error from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}

		op, val := s.dispatch(req)
		if err := protocol.Encode(conn, op, nil, val); err != nil {
			log.Printf("[TCP] Write error to %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

func errResp(err error) (byte, []byte) {
	return protocol.RespErr, []byte(err.Error())
}

func (s *TCPServer) dispatch(req *protocol.Packet) (byte, []byte) {
	switch req.Op {
	case protocol.OpInsert:
		p, err := protocol.DecodePoint(req.Key)
		if err != nil {
			return errResp(err)
		}
		old, replaced, err := s.store.Insert(p)
		if err != nil {
			return errResp(err)
		}
		if replaced {
			return protocol.RespOK, protocol.EncodePoint(old)
		}
		return protocol.RespOK, nil

	case protocol.OpGet:
		c, err := protocol.DecodeFloats(req.Key, 2)
		if err != nil {
			return errResp(err)
		}
		if p, ok := s.store.Get(c[0], c[1]); ok {
			return protocol.RespVal, protocol.EncodePoint(p)
		}
		return protocol.RespNone, nil

	case protocol.OpRemove:
		c, err := protocol.DecodeFloats(req.Key, 2)
		if err != nil {
			return errResp(err)
		}
		old, ok, err := s.store.Remove(c[0], c[1])
		if err != nil {
			return errResp(err)
		}
		if !ok {
			return protocol.RespNone, nil
		}
		return protocol.RespOK, protocol.EncodePoint(old)

	case protocol.OpRange:
		c, err := protocol.DecodeFloats(req.Key, 4)
		if err != nil {
			return errResp(err)
		}
		ps := s.store.Range([2]float64{c[0], c[1]}, [2]float64{c[2], c[3]})
		return protocol.RespVal, protocol.EncodePoints(ps)

	case protocol.OpRadius:
		c, err := protocol.DecodeFloats(req.Key, 3)
		if err != nil {
			return errResp(err)
		}
		return protocol.RespVal, protocol.EncodePoints(s.store.Radius([2]float64{c[0], c[1]}, c[2]))

	case protocol.OpNearest:
		c, err := protocol.DecodeFloats(req.Key, 2)
		if err != nil {
			return errResp(err)
		}
		q := [2]float64{c[0], c[1]}
		if len(req.Value) >= 4 {
			k := int(binary.BigEndian.Uint32(req.Value))
			return protocol.RespVal, protocol.EncodePoints(s.store.KNearest(q, k))
		}
		if p, ok := s.store.Nearest(q); ok {
			return protocol.RespVal, protocol.EncodePoint(p)
		}
		return protocol.RespNone, nil

	case protocol.OpBatch:
		ps, err := protocol.DecodePoints(req.Value)
		if err != nil {
			return errResp(err)
		}
		if err := s.store.BatchInsert(ps); err != nil {
			return errResp(err)
		}
		return protocol.RespOK, nil

	case protocol.OpQuery:
		stmt, err := query.Parse(string(req.Value))
		if err != nil {
			return errResp(err)
		}
		ps, err := s.store.Execute(stmt)
		if err != nil {
			return errResp(err)
		}
		return protocol.RespVal, protocol.EncodePoints(ps)

	default:
		return protocol.RespErr, []byte("unknown op")
	}
}
