package notify

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"
)

// Status is the daemon's live state, published over the status socket.
// Fields are plain strings and numbers so widget consumers (waybar, eww,
// shell scripts) can decode it without knowing any internal types.
type Status struct {
	SessionID        string    `json:"session_id"`
	Label            string    `json:"label"`
	Phase            string    `json:"phase"`
	UnfocusedSeconds int       `json:"unfocused_seconds"`
	TrackedSeconds   int       `json:"tracked_seconds"`
	FocusRatio       float64   `json:"focus_ratio"`
	Finalized        bool      `json:"finalized"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// StatusServer publishes Status updates over a Unix socket, one JSON
// object per line. New clients get the newest status immediately on
// connect, so one-shot readers never have to wait out a tick.
type StatusServer struct {
	path     string
	listener net.Listener
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	clients map[net.Conn]bool
	last    []byte
}

// NewStatusServer creates a server that will listen at path.
func NewStatusServer(path string) *StatusServer {
	return &StatusServer{
		path:    path,
		clients: make(map[net.Conn]bool),
		done:    make(chan struct{}),
	}
}

// Start begins listening for connections.
func (s *StatusServer) Start() error {
	// Remove a stale socket from a previous run
	os.Remove(s.path)

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("failed to listen on status socket: %w", err)
	}
	s.listener = listener
	os.Chmod(s.path, 0700)

	go s.acceptLoop()
	return nil
}

// Stop shuts down the server and removes the socket file. Safe to call
// more than once.
func (s *StatusServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}

		s.mu.Lock()
		for conn := range s.clients {
			conn.Close()
		}
		s.clients = make(map[net.Conn]bool)
		s.mu.Unlock()

		os.Remove(s.path)
	})
}

// Publish sends a status to every connected client and keeps it for
// clients that connect later. Dead connections are dropped on the spot.
func (s *StatusServer) Publish(st Status) {
	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = data
	for conn := range s.clients {
		if _, err := conn.Write(data); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *StatusServer) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *StatusServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				log.Printf("[status] Accept error: %v", err)
				continue
			}
		}

		s.mu.Lock()
		s.clients[conn] = true
		if s.last != nil {
			conn.Write(s.last)
		}
		count := len(s.clients)
		s.mu.Unlock()

		log.Printf("[status] Client connected (%d total)", count)
		go s.drain(conn)
	}
}

// drain discards client input until the connection dies. The protocol is
// one-way; reading is just how we notice the other side went away.
func (s *StatusServer) drain(conn net.Conn) {
	_, _ = io.Copy(io.Discard, conn)

	s.mu.Lock()
	if s.clients[conn] {
		delete(s.clients, conn)
		conn.Close()
	}
	count := len(s.clients)
	s.mu.Unlock()

	log.Printf("[status] Client disconnected (%d total)", count)
}

// ReadStatus connects to the socket at path and reads a single status,
// for one-shot consumers like `vigil status`.
func ReadStatus(path string) (Status, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return Status{}, fmt.Errorf("failed to connect to status socket: %w", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return Status{}, fmt.Errorf("failed to read status: %w", err)
	}

	var st Status
	if err := json.Unmarshal(line, &st); err != nil {
		return Status{}, fmt.Errorf("failed to decode status: %w", err)
	}
	return st, nil
}
