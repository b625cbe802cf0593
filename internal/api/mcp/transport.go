package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
)

// maxLineBytes bounds a single stdio request line. Raw-text payloads
// can be large, so this is well above typical JSON-RPC traffic.
const maxLineBytes = 4 * 1024 * 1024

// StdioTransport speaks newline-delimited JSON-RPC over stdin/stdout,
// the framing MCP clients use when spawning a server as a subprocess.
// Diagnostics go to stderr only: stdout carries nothing but responses.
type StdioTransport struct {
	server *Server
	in     io.Reader
	out    io.Writer
	logger *log.Logger
}

// NewStdioTransport creates a transport reading requests from in and
// writing responses to out. Callers normally pass os.Stdin and
// os.Stdout.
func NewStdioTransport(server *Server, in io.Reader, out io.Writer) *StdioTransport {
	return &StdioTransport{
		server: server,
		in:     in,
		out:    out,
		logger: log.New(os.Stderr, "recollect-mcp: ", log.LstdFlags),
	}
}

// Serve reads requests line by line until stdin closes or ctx is
// cancelled. Each line is one JSON-RPC payload; responses are written
// back as single lines. Notifications produce no output at all.
func (t *StdioTransport) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(t.in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		response, err := t.server.HandleRequest(ctx, line)
		if err != nil {
			t.logger.Printf("request failed: %v", err)
			response = t.internalErrorResponse()
		}
		if response == nil {
			// Notification: nothing goes back on the wire.
			continue
		}
		if err := t.writeLine(response); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdin read failed: %w", err)
	}
	return nil
}

func (t *StdioTransport) writeLine(payload []byte) error {
	if _, err := t.out.Write(payload); err != nil {
		return err
	}
	_, err := t.out.Write([]byte("\n"))
	return err
}

// internalErrorResponse is the last-resort reply when even response
// serialization failed.
func (t *StdioTransport) internalErrorResponse() []byte {
	resp, err := json.Marshal(JSONRPCResponse{
		JSONRPC: "2.0",
		Error: &JSONRPCError{
			Code:    ErrCodeInternalError,
			Message: "Internal error",
		},
		ID: json.RawMessage("null"),
	})
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"Internal error"},"id":null}`)
	}
	return resp
}
