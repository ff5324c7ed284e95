// Package fileserve implements the second TCP role the protocol supports:
// instead of a client streaming live telemetry in, this server accepts the
// client-side handshake and then replays a recorded ACMI file line by line,
// letting cmd/tacview-ingest drive the ingester against a fixed recording
// for batch processing or benchmarking.
package fileserve

import (
	"archive/zip"
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/dcstacview/tacview-ingest/pkg/log"
)

// handshakeTerm is the byte that ends the four-line client handshake.
const handshakeTerm = 0

// exitSentinel is the synthetic removal line appended once the source file
// is exhausted, if requested, so a consumer loop with no natural EndOfFile
// signal (a live socket never closes on its own) still terminates cleanly.
const exitSentinel = "-exit"

// ListenAndServe accepts connections on addr and serves filePath to each,
// until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr, filePath string, appendExit bool) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Infof("serving %s on %s", filePath, addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accepting connection: %w", err)
			}
		}

		go func() {
			if err := handleConn(conn, filePath, appendExit); err != nil {
				log.Errorf("serving %s to %s: %v", filePath, conn.RemoteAddr(), err)
			}
		}()
	}
}

func handleConn(conn net.Conn, filePath string, appendExit bool) error {
	defer conn.Close()

	if err := consumeHandshake(conn); err != nil {
		return fmt.Errorf("reading client handshake: %w", err)
	}
	if _, err := conn.Write([]byte("0\n")); err != nil {
		return fmt.Errorf("writing handshake ack: %w", err)
	}

	r, closer, err := openACMISource(filePath)
	if err != nil {
		return err
	}
	defer closer.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if _, err := fmt.Fprintf(conn, "%s\n", scanner.Text()); err != nil {
			return fmt.Errorf("writing frame: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading source file: %w", err)
	}

	if appendExit {
		if _, err := fmt.Fprintf(conn, "%s\n", exitSentinel); err != nil {
			return fmt.Errorf("writing exit sentinel: %w", err)
		}
	}
	return nil
}

// consumeHandshake reads and discards bytes up to and including the
// handshake terminator; its content is not inspected, matching how the core
// client ignores the ack line sent in the other direction.
func consumeHandshake(conn net.Conn) error {
	r := bufio.NewReader(conn)
	_, err := r.ReadBytes(handshakeTerm)
	return err
}

// openACMISource opens filePath, transparently decompressing .gz and
// reading the first entry of a .zip, and returns a reader plus the closer
// the caller must invoke when done.
func openACMISource(filePath string) (io.Reader, io.Closer, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".gz":
		f, err := os.Open(filePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", filePath, err)
		}
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("opening gzip stream %s: %w", filePath, err)
		}
		return gz, multiCloser{gz, f}, nil

	case ".zip":
		zr, err := zip.OpenReader(filePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening zip %s: %w", filePath, err)
		}
		if len(zr.File) == 0 {
			zr.Close()
			return nil, nil, fmt.Errorf("zip %s has no entries", filePath)
		}
		rc, err := zr.File[0].Open()
		if err != nil {
			zr.Close()
			return nil, nil, fmt.Errorf("opening zip entry %s: %w", zr.File[0].Name, err)
		}
		return rc, multiCloser{rc, zr}, nil

	default:
		f, err := os.Open(filePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", filePath, err)
		}
		return f, f, nil
	}
}

// multiCloser closes its members in order, stopping at (but recording) the
// first error.
type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var firstErr error
	for _, c := range m {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
