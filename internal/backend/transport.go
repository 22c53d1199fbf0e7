package backend

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// TransportType is the closed enumeration of ways to reach the metrics
// backend's MCP server.
type TransportType string

const (
	TransportStdio TransportType = "stdio"
	TransportHTTP  TransportType = "http"
)

// TransportConfig describes how to connect to the metrics backend. These
// are operator-configured values, never baked into the binary.
type TransportConfig struct {
	Type    TransportType
	Command string
	Args    []string
	URL     string
	Timeout time.Duration
}

func createTransport(cfg TransportConfig) (mcpsdk.Transport, error) {
	switch cfg.Type {
	case TransportStdio:
		if cfg.Command == "" {
			return nil, fmt.Errorf("stdio transport requires a command")
		}
		cmd := exec.Command(cfg.Command, cfg.Args...)
		cmd.Env = os.Environ()
		return &mcpsdk.CommandTransport{Command: cmd}, nil
	case TransportHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("http transport requires a url")
		}
		t := &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
		if cfg.Timeout > 0 {
			t.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", cfg.Type)
	}
}
