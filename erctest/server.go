// Package erctest provides an in-memory IRC server double for exercising the
// connection backend without a network.
package erctest

import (
	"bufio"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/netirc/erc"
)

// sendBacklog bounds how many server lines may be queued ahead of the
// client reading them. Handlers and tests may call WriteString from the
// client's own dispatch path, so the send direction must not block.
const sendBacklog = 64

// NewServer creates a mock IRC server that implements io.ReadWriteCloser, so
// it can be returned from a Client's DialFn. Don't forget to close.
func NewServer() *Server {
	s := &Server{}
	s.sendReader, s.sendWriter = io.Pipe()
	s.recvReader, s.recvWriter = io.Pipe()
	s.recv = make(chan []byte, 1)
	s.send = make(chan []byte, sendBacklog)

	go s.read()
	go s.pumpRecv()
	go s.pumpSend()
	return s
}

// Server is the client's view of a fake IRC network. Lines the client writes
// are parsed and passed to Handler; WriteString pushes server lines to the
// client.
type Server struct {
	// Handler receives every well-formed line the client sends.
	Handler func(s *Server, m *erc.Message)

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	recv      chan []byte
	send      chan []byte

	recvReader *io.PipeReader
	recvWriter *io.PipeWriter

	sendReader *io.PipeReader
	sendWriter *io.PipeWriter
}

// Read is how the client reads lines from the server.
func (s *Server) Read(p []byte) (int, error) {
	return s.sendReader.Read(p)
}

// Write is how the client sends lines to the server.
func (s *Server) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	b := make([]byte, len(p))
	copy(b, p)
	s.recv <- b
	return len(p), nil
}

// Close tears down both directions. Lines queued by WriteString are
// delivered first, then the client's reader observes EOF.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.recv)
		close(s.send)
		s.mu.Unlock()
		_ = s.recvWriter.Close()
	})
	return nil
}

// WriteString queues one line for delivery from the server to the client. A
// missing terminator is appended. WriteString never blocks on the client
// reading, so it is safe to call from a dispatch handler.
func (s *Server) WriteString(str string) {
	if !strings.HasSuffix(str, "\r\n") {
		str += "\r\n"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.send <- []byte(str)
}

func (s *Server) read() {
	scanner := bufio.NewScanner(s.recvReader)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		m, err := erc.Parse(line, "erctest.server")
		if err != nil {
			log.Println("erctest: parse error:", err)
			continue
		}
		if s.Handler != nil {
			s.Handler(s, m)
		}
	}
}

func (s *Server) pumpRecv() {
	for b := range s.recv {
		if _, err := s.recvWriter.Write(b); err != nil && err != io.ErrClosedPipe {
			log.Println("erctest: pipe write error:", err)
		}
	}
}

func (s *Server) pumpSend() {
	for b := range s.send {
		if _, err := s.sendWriter.Write(b); err != nil && err != io.ErrClosedPipe {
			log.Println("erctest: pipe write error:", err)
		}
	}
	_ = s.sendWriter.Close()
}
