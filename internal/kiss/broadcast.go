package kiss

import (
	"fmt"
	"net"
)

// Broadcaster sends decoded ARQ frames out as KISS-encapsulated UDP
// datagrams, implementing the -b <broadcast_port> flag spec §6 defines.
type Broadcaster struct {
	conn *net.UDPConn
	port byte
}

// NewBroadcaster opens a UDP socket broadcasting to 255.255.255.255:port.
func NewBroadcaster(port int) (*Broadcaster, error) {
	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4bcast, Port: port})
	if err != nil {
		return nil, fmt.Errorf("kiss: dial broadcast port %d: %w", port, err)
	}
	return &Broadcaster{conn: conn}, nil
}

// Send KISS-encapsulates frame on port 0 and writes it to the broadcast
// socket.
func (b *Broadcaster) Send(frame []byte) error {
	_, err := b.conn.Write(Encapsulate(b.port, frame))
	return err
}

// Close releases the UDP socket.
func (b *Broadcaster) Close() error {
	return b.conn.Close()
}
