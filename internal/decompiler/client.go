package decompiler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/kobzarvs/qdecomp/internal/ast"
	"github.com/kobzarvs/qdecomp/internal/config"
	"github.com/kobzarvs/qdecomp/internal/host"
	"github.com/kobzarvs/qdecomp/internal/logger"
)

var (
	ErrTimeout = errors.New("decompiler request timed out")
	ErrExited  = errors.New("decompiler exited")
)

type Event struct {
	Kind    string
	Message string
}

// Client runs the decompiler as a subprocess and talks JSON-RPC to it over
// stdio. The process is started on first use and restarted after it exits.
type Client struct {
	cfg      config.Decompiler
	srv      *server
	events   chan Event
	segments host.Segments
	mu       sync.Mutex
}

func NewClient(cfg config.Decompiler) *Client {
	return &Client{
		cfg:    cfg,
		events: make(chan Event, 32),
	}
}

func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.srv != nil {
		c.srv.stop()
		c.srv = nil
	}
	return nil
}

// SetSegments answers the decompiler's is_read_only and is_extern
// requests. Without it those requests fail. Takes effect for processes
// started afterwards.
func (c *Client) SetSegments(seg host.Segments) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.segments = seg
}

func (c *Client) Events() <-chan Event {
	return c.events
}

// Decompile asks the decompiler for the syntax tree of fn.
func (c *Client) Decompile(ctx context.Context, fn host.Function) (*ast.Function, error) {
	srv, err := c.getServer(ctx)
	if err != nil {
		return nil, err
	}
	params := decompileParams{Start: uint64(fn.Start), End: uint64(fn.End), Name: fn.Name}
	result, err := srv.request(ctx, "decompile", params, c.cfg)
	if err != nil {
		return nil, fmt.Errorf("decompile %s: %w", fn.Start, err)
	}
	tree, err := ast.Decode(result)
	if err != nil {
		return nil, fmt.Errorf("decompile %s: %w", fn.Start, err)
	}
	return tree, nil
}

func (c *Client) getServer(ctx context.Context) (*server, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.srv != nil {
		select {
		case <-c.srv.done:
			logger.Warn("decompiler exited, restarting", "command", c.cfg.Command)
			c.srv.stop()
			c.srv = nil
		default:
			return c.srv, nil
		}
	}
	if c.cfg.Command == "" {
		return nil, errors.New("no decompiler command configured")
	}
	cmd := exec.Command(c.cfg.Command, c.cfg.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start decompiler: %w", err)
	}
	srv := &server{
		cmd:      cmd,
		stdin:    stdin,
		reader:   bufio.NewReader(stdout),
		events:   c.events,
		segments: c.segments,
		handlers: make(map[int]chan response),
		done:     make(chan struct{}),
	}
	go srv.readLoop()
	if err := srv.initialize(ctx, c.cfg); err != nil {
		srv.stop()
		return nil, fmt.Errorf("initialize decompiler: %w", err)
	}
	logger.Info("decompiler started", "command", c.cfg.Command, "pid", cmd.Process.Pid)
	c.srv = srv
	return srv, nil
}

type server struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	reader   *bufio.Reader
	events   chan Event
	segments host.Segments
	mu       sync.Mutex
	nextID   int
	handlers map[int]chan response // pending request handlers
	done     chan struct{}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type rpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// RPCError is an error object returned by the decompiler
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("decompiler error %d: %s", e.Code, e.Message)
}

type response struct {
	result json.RawMessage
	err    *RPCError
}

type initializeParams struct {
	ProcessID  int               `json:"processId"`
	Program    string            `json:"program,omitempty"`
	ClientInfo map[string]string `json:"clientInfo"`
}

type addrParams struct {
	Addr uint64 `json:"addr"`
}

type decompileParams struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
	Name  string `json:"name,omitempty"`
}

func (s *server) initialize(ctx context.Context, cfg config.Decompiler) error {
	params := initializeParams{
		ProcessID:  os.Getpid(),
		Program:    cfg.Program,
		ClientInfo: map[string]string{"name": "qdecomp"},
	}
	if _, err := s.request(ctx, "initialize", params, cfg); err != nil {
		return err
	}
	return s.sendNotification("initialized", map[string]any{})
}

func (s *server) readLoop() {
	defer close(s.done)
	for {
		msg, err := readMessage(s.reader)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.sendEvent("error", err.Error())
			}
			return
		}
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(msg, &envelope); err != nil {
			continue
		}
		idRaw, hasID := envelope["id"]
		rawMethod, hasMethod := envelope["method"]
		if hasID && hasMethod {
			s.handleRequest(idRaw, rawMethod, envelope["params"])
			continue
		}
		if hasID {
			var id int
			if err := json.Unmarshal(idRaw, &id); err == nil {
				s.handleResponse(id, envelope)
			}
			continue
		}
		if hasMethod {
			s.handleNotification(rawMethod, envelope["params"])
		}
	}
}

func (s *server) handleResponse(id int, envelope map[string]json.RawMessage) {
	s.mu.Lock()
	ch, ok := s.handlers[id]
	if ok {
		delete(s.handlers, id)
	}
	s.mu.Unlock()
	if !ok {
		return // answer to a request that already timed out
	}
	var resp response
	if errRaw, ok := envelope["error"]; ok && string(errRaw) != "null" {
		resp.err = &RPCError{}
		if err := json.Unmarshal(errRaw, resp.err); err != nil {
			resp.err = &RPCError{Code: -32603, Message: string(errRaw)}
		}
	} else {
		resp.result = envelope["result"]
	}
	ch <- resp
	close(ch)
}

// handleRequest answers the decompiler's questions about the program
// image while it works on a function.
func (s *server) handleRequest(id, rawMethod, rawParams json.RawMessage) {
	resp := rpcResponse{JSONRPC: "2.0", ID: id}
	var method string
	_ = json.Unmarshal(rawMethod, &method)
	var params addrParams
	switch {
	case method != "is_read_only" && method != "is_extern":
		resp.Error = &RPCError{Code: -32601, Message: "method not found: " + method}
	case s.segments == nil:
		resp.Error = &RPCError{Code: -32603, Message: "no program database"}
	case json.Unmarshal(rawParams, &params) != nil:
		resp.Error = &RPCError{Code: -32602, Message: "invalid params"}
	default:
		addr := host.Address(params.Addr)
		answer := s.segments.IsReadOnly(addr)
		if method == "is_extern" {
			answer = s.segments.IsExtern(addr)
		}
		resp.Result = json.RawMessage(strconv.FormatBool(answer))
	}
	if resp.Error != nil {
		logger.Debug("decompiler request refused", "method", method, "error", resp.Error.Message)
	}
	if err := s.send(resp); err != nil {
		logger.Warn("decompiler reply failed", "method", method, "error", err)
	}
}

// handleNotification forwards log messages from the decompiler
func (s *server) handleNotification(rawMethod, rawParams json.RawMessage) {
	var method string
	if err := json.Unmarshal(rawMethod, &method); err != nil || method != "log" {
		return
	}
	var params struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rawParams, &params); err == nil {
		s.sendEvent("log", params.Message)
	}
}

func (s *server) sendNotification(method string, params any) error {
	msg := rpcNotification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}
	return s.send(msg)
}

func (s *server) send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeMessage(s.stdin, payload)
}

// request sends a JSON-RPC request and waits for the response, the
// configured timeout, ctx or the process exiting
func (s *server) request(ctx context.Context, method string, params any, cfg config.Decompiler) (json.RawMessage, error) {
	if timeout := cfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	ch := make(chan response, 1)
	s.handlers[id] = ch
	s.mu.Unlock()

	msg := rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}
	if err := s.send(msg); err != nil {
		s.forget(id)
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.err != nil {
			return nil, resp.err
		}
		return resp.result, nil
	case <-ctx.Done():
		s.forget(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", method, ErrTimeout)
		}
		return nil, ctx.Err()
	case <-s.done:
		s.forget(id)
		return nil, ErrExited
	}
}

func (s *server) forget(id int) {
	s.mu.Lock()
	delete(s.handlers, id)
	s.mu.Unlock()
}

func (s *server) sendEvent(kind, msg string) {
	select {
	case s.events <- Event{Kind: kind, Message: msg}:
	default:
	}
}

func (s *server) stop() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	_ = s.stdin.Close()
	_ = s.cmd.Process.Kill()
	_, _ = s.cmd.Process.Wait()
}

func writeMessage(w io.Writer, payload []byte) error {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(payload))
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readMessage(r *bufio.Reader) ([]byte, error) {
	length := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.ToLower(strings.TrimSpace(parts[0])) == "content-length" {
			val := strings.TrimSpace(parts[1])
			if n, err := strconv.Atoi(val); err == nil {
				length = n
			}
		}
	}
	if length < 0 {
		return nil, errors.New("missing content-length")
	}
	buf := make([]byte, length)
	_, err := io.ReadFull(r, buf)
	return buf, err
}
