package network

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurogeo/pkg/protocol"
	"neurogeo/pkg/query"
)

// memStore answers from a plain slice.
type memStore struct {
	points []Point
}

func (m *memStore) Insert(p Point) (Point, bool, error) {
	m.points = append(m.points, p)
	return Point{}, false, nil
}
func (m *memStore) BatchInsert(ps []Point) error { m.points = append(m.points, ps...); return nil }
func (m *memStore) Get(x, y float64) (Point, bool) {
	for _, p := range m.points {
		if p.X == x && p.Y == y {
			return p, true
		}
	}
	return Point{}, false
}
func (m *memStore) Remove(x, y float64) (Point, bool, error) { return Point{}, false, nil }
func (m *memStore) Range(bl, tr [2]float64) []Point { return m.points }
func (m *memStore) Radius(c [2]float64, r float64) []Point { return nil }
func (m *memStore) Nearest(q [2]float64) (Point, bool) { return Point{}, false }
func (m *memStore) KNearest(q [2]float64, k int) []Point { return m.points[:k] }
func (m *memStore) Execute(stmt *query.Stmt) ([]Point, error) { return m.points, nil }

func TestTCPServerDispatch(t *testing.T) {
	store := &memStore{}
	srv := NewTCPServer(store)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(l) }()

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	call := func(op byte, key, val []byte) *protocol.Packet {
		require.NoError(t, protocol.Encode(conn, op, key, val))
		resp, err := protocol.Decode(conn)
		require.NoError(t, err)
		return resp
	}

	resp := call(protocol.OpInsert, protocol.EncodePoint(Point{ID: 9, X: 1, Y: 2}), nil)
	assert.Equal(t, byte(protocol.RespOK), resp.Op)

	resp = call(protocol.OpGet, protocol.EncodeFloats(1, 2), nil)
	require.Equal(t, byte(protocol.RespVal), resp.Op)
	p, err := protocol.DecodePoint(resp.Value)
	require.NoError(t, err)
	assert.Equal(t, 9, p.ID)

	resp = call(protocol.OpNearest, protocol.EncodeFloats(0, 0), nil)
	assert.Equal(t, byte(protocol.RespNone), resp.Op)

	resp = call(protocol.OpGet, []byte{1, 2}, nil)
	assert.Equal(t, byte(protocol.RespErr), resp.Op)

	resp = call(0x7F, nil, nil)
	assert.Equal(t, "unknown op", string(resp.Value))

	resp = call(protocol.OpQuery, nil, []byte("SELECT * FROM points"))
	ps, err := protocol.DecodePoints(resp.Value)
	require.NoError(t, err)
	assert.Len(t, ps, 1)

	require.NoError(t, srv.Close())
	assert.NoError(t, <-done)
}
