package bridge

import (
	"fmt"
	"net"
	"sync"

	"github.com/charmbracelet/log"
)

// DataServer accepts one data client at a time, forwarding bytes the
// client writes to Outbound and writing whatever arrives on Inbound back
// to the client, per spec §6's raw data socket at base_port+1.
type DataServer struct {
	listener net.Listener
	log      *log.Logger

	Outbound chan []byte
	Inbound  chan []byte

	mu   sync.Mutex
	conn net.Conn
}

// ListenData binds the data socket at addr (e.g. ":8301").
func ListenData(addr string, logger *log.Logger) (*DataServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bridge: listen data %s: %w", addr, err)
	}
	return &DataServer{
		listener: ln,
		log:      logger,
		Outbound: make(chan []byte, 256),
		Inbound:  make(chan []byte, 256),
	}, nil
}

// Serve accepts connections one at a time until Close is called.
func (s *DataServer) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.handle(conn)
	}
}

func (s *DataServer) handle(conn net.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for b := range s.Inbound {
			if _, err := conn.Write(b); err != nil {
				return
			}
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := append([]byte{}, buf[:n]...)
			select {
			case s.Outbound <- chunk:
			default:
				if s.log != nil {
					s.log.Warn("data outbound queue full, dropping chunk")
				}
			}
		}
		if err != nil {
			break
		}
	}
	conn.Close()
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
}

// Connected reports whether a data client is currently attached.
func (s *DataServer) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Addr reports the bound data address.
func (s *DataServer) Addr() net.Addr { return s.listener.Addr() }

// Close stops accepting new data connections.
func (s *DataServer) Close() error { return s.listener.Close() }
