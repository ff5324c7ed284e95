package acmi

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/dcstacview/tacview-ingest/pkg/log"
)

const (
	streamProtocol  = "XtraLib.Stream.0"
	tacviewProtocol = "Tacview.RealTimeTelemetry.0"
	handshakeTerm   = "\x00"

	// reconnectBackoff is the fixed delay between connection attempts
	// Connection errors retry at this interval, indefinitely, until
	// cancelled.
	reconnectBackoff = 3 * time.Second
)

// Framer reads newline-terminated ACMI frames from a TCP connection,
// performing the client-side handshake on each (re)connect.
type Framer struct {
	host, clientName, password string
	port                       int

	conn   net.Conn
	reader *bufio.Reader
}

// NewFramer returns a Framer that will dial host:port with the given
// client credentials once Open is called.
func NewFramer(host string, port int, clientName, password string) *Framer {
	return &Framer{host: host, port: port, clientName: clientName, password: password}
}

// Open dials the remote endpoint and performs the handshake, retrying with
// a fixed back-off on connection errors until ctx is cancelled.
func (f *Framer) Open(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", f.host, f.port)
	var dialer net.Dialer

	for {
		log.Infof("Opening connection to %s...", addr)
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			log.Errorf("Connection attempt to %s failed: %v. Retrying in %s...", addr, err, reconnectBackoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectBackoff):
				continue
			}
		}

		handshake := streamProtocol + "\n" + tacviewProtocol + "\n" + f.clientName + "\n" + f.password + handshakeTerm
		if _, err := conn.Write([]byte(handshake)); err != nil {
			log.Errorf("Handshake write to %s failed: %v. Retrying in %s...", addr, err, reconnectBackoff)
			conn.Close()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectBackoff):
				continue
			}
		}

		f.conn = conn
		f.reader = bufio.NewReader(conn)
		// One line acknowledges the handshake; its content is not
		// inspected by the core.
		if _, err := f.reader.ReadString('\n'); err != nil {
			log.Errorf("Handshake ack read from %s failed: %v. Retrying in %s...", addr, err, reconnectBackoff)
			conn.Close()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectBackoff):
				continue
			}
		}

		log.Info("Connection opened with successful handshake...")
		return nil
	}
}

// ReadFrame returns the next newline-terminated frame with the trailing
// newline stripped. Returns ErrEndOfFile when the peer closes the
// connection or sends a zero-length frame.
func (f *Framer) ReadFrame() ([]byte, error) {
	line, err := f.reader.ReadBytes('\n')
	if err != nil {
		if len(line) == 0 {
			return nil, ErrEndOfFile
		}
		// A final unterminated line still counts as data once; beyond
		// that the next read will fail again and return ErrEndOfFile.
	}
	if line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	if len(line) == 0 {
		return nil, ErrEndOfFile
	}
	return line, nil
}

// Close shuts down the underlying connection.
func (f *Framer) Close() error {
	if f.conn == nil {
		return nil
	}
	return f.conn.Close()
}
