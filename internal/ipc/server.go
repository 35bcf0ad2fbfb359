package ipc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
)

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	dispatcher   Dispatcher
	reload       func() error
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server on socketPath. reload is called for
// the reload command and may be nil.
func NewServer(socketPath string, dispatcher Dispatcher, reload func() error) (*Server, error) {
	if socketPath == "" {
		return nil, fmt.Errorf("IPC socket path is empty")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is nil")
	}

	// Remove a stale socket left by a previous run
	os.Remove(socketPath)

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath: socketPath,
		dispatcher: dispatcher,
		reload:     reload,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	log.Printf("IPC server listening on %s", s.socketPath)

	go s.acceptLoop()

	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			log.Printf("IPC accept error: %v", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection reads newline-delimited requests until the client hangs
// up. Each request runs on its own goroutine; responses are written in
// completion order and carry the request id.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	var (
		writeMu  sync.Mutex
		inflight sync.WaitGroup
	)
	send := func(resp *Response) {
		data, err := resp.Marshal()
		if err != nil {
			log.Printf("IPC: failed to marshal response: %v", err)
			return
		}
		data = append(data, '\n')
		writeMu.Lock()
		defer writeMu.Unlock()
		if _, err := conn.Write(data); err != nil {
			log.Printf("IPC: failed to send response: %v", err)
		}
	}

	reader := bufio.NewReader(conn)
	for {
		data, err := reader.ReadBytes('\n')
		if len(data) > 0 {
			s.handleLine(data, send, &inflight)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Printf("IPC read error: %v", err)
			}
			break
		}
	}
	inflight.Wait()
}

func (s *Server) handleLine(data []byte, send func(*Response), inflight *sync.WaitGroup) {
	if len(bytes.TrimSpace(data)) == 0 {
		return
	}
	req, err := ParseRequest(data)
	if err != nil {
		send(NewErrorResponse(fmt.Sprintf("Invalid request: %v", err)))
		return
	}

	if req.Command == CommandReload {
		send(s.handleReload(req))
		return
	}

	inflight.Add(1)
	go func() {
		defer inflight.Done()
		send(Handle(s.ctx, s.dispatcher, req))
	}()
}

// handleReload re-reads the configuration through the reload callback.
func (s *Server) handleReload(req *Request) *Response {
	log.Println("IPC: Received reload command")

	resp, _ := NewOKResponse(nil)
	if s.reload == nil {
		resp = NewErrorResponse("reload is not supported")
	} else if err := s.reload(); err != nil {
		resp = NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err))
	} else {
		log.Println("IPC: Config reloaded successfully")
	}
	resp.ID = req.ID
	return resp
}

// Stop gracefully shuts down the IPC server. In-flight commands are allowed
// to finish; dialogs still waiting on the user keep their connection open
// until answered.
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.cancel()
	os.Remove(s.socketPath)
}

// Wait blocks until every open connection has been closed.
func (s *Server) Wait() {
	s.wg.Wait()
}
