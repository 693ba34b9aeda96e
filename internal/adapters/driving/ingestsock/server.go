// Package ingestsock serves the ingestion wire protocol on a unix
// domain socket. One CapturePayload JSON object per request line, one
// response object per line, strictly in request order.
package ingestsock

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
	"github.com/custodia-labs/glimpsed/internal/core/ports/driving"
	"github.com/custodia-labs/glimpsed/internal/logger"
)

// maxLineBytes bounds a single request line.
const maxLineBytes = 8 * 1024 * 1024

// Server accepts connections and feeds payloads to the ingestor.
type Server struct {
	ingestor driving.Ingestor
	path     string

	mu       sync.Mutex
	listener net.Listener

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewServer builds a server for the given socket path.
func NewServer(ingestor driving.Ingestor, path string) *Server {
	return &Server{
		ingestor: ingestor,
		path:     path,
		done:     make(chan struct{}),
	}
}

// Listen binds the socket. A stale socket file from a previous run is
// removed first; a bind failure is fatal to the caller.
func (s *Server) Listen() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.path, err)
	}

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("binding %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return nil
}

// Serve accepts connections until the context is cancelled or Close is
// called. Listen must have succeeded first.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return fmt.Errorf("%w: serve before listen", domain.ErrInvalidInput)
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		listener.Close()
	}()

	logger.Info("ingestion socket listening on %s", s.path)

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			case <-s.done:
				s.wg.Wait()
				return nil
			default:
				return fmt.Errorf("accepting connection: %w", err)
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

// Close stops accepting and unlinks the socket.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Unlock()
		os.Remove(s.path)
	})
	return nil
}

// handle serves one connection. Responses go out in request order; a
// malformed line produces an error response and the connection keeps
// serving.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var payload domain.CapturePayload
		var result domain.IngestResult
		if err := json.Unmarshal(line, &payload); err != nil {
			result = domain.Errored(fmt.Sprintf("malformed payload: %v", err))
		} else {
			result = s.ingestor.Ingest(ctx, payload)
		}

		if err := enc.Encode(result); err != nil {
			logger.Warn("socket response write: %v", err)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Debug("socket read: %v", err)
	}
}
