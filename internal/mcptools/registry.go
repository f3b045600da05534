// Package mcptools connects to remote MCP tool servers over streamable HTTP
// and exposes their tools behind one registry.
package mcptools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"agentchat/internal/config"
)

const (
	clientName      = "agentchat"
	clientVersion   = "1.0.0"
	protocolVersion = "2025-06-18"

	defaultAPIKeyHeader = "x-api-key"
)

// Registry holds live sessions to every reachable MCP server and routes
// tool calls to the server that owns each tool. A server that fails to
// connect is skipped; it never blocks the others.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*client.Client // server name -> session
	byTool  map[string]*client.Client // tool name -> owning session
	tools   []mcptypes.Tool

	closeTimeout time.Duration
	logger       *zap.Logger
}

// NewRegistry connects to every enabled server in cfg. Connection failures
// are logged per server and leave the registry usable with whatever subset
// connected.
func NewRegistry(ctx context.Context, cfg config.MCPConfig, logger *zap.Logger) *Registry {
	r := &Registry{
		clients:      make(map[string]*client.Client),
		byTool:       make(map[string]*client.Client),
		closeTimeout: cfg.CloseTimeout,
		logger:       logger,
	}
	if r.closeTimeout <= 0 {
		r.closeTimeout = time.Second
	}

	for _, server := range cfg.Servers {
		if !server.Enabled {
			continue
		}

		connectCtx := ctx
		var cancel context.CancelFunc
		if cfg.ConnectTimeout > 0 {
			connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		}
		err := r.connect(connectCtx, server)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			logger.Warn("mcp server unreachable, skipping",
				zap.String("server", server.Name),
				zap.String("url", server.URL),
				zap.Error(err))
		}
	}

	logger.Info("mcp registry ready",
		zap.Int("servers", len(r.clients)),
		zap.Int("tools", len(r.tools)))

	return r
}

func (r *Registry) connect(ctx context.Context, server config.MCPServerConfig) error {
	url := normalizeURL(server.URL)

	headers := make(map[string]string, len(server.Headers)+1)
	for k, v := range server.Headers {
		headers[k] = v
	}
	if server.APIKey != "" {
		header := server.APIKeyHeader
		if header == "" {
			header = defaultAPIKeyHeader
		}
		headers[header] = server.APIKey
	}

	var opts []transport.StreamableHTTPCOption
	if len(headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(headers))
	}

	mcpClient, err := client.NewStreamableHttpClient(url, opts...)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	if err := mcpClient.GetTransport().Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	if _, err := mcpClient.Initialize(ctx, mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
		},
	}); err != nil {
		mcpClient.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	listed, err := mcpClient.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("list tools: %w", err)
	}

	r.mu.Lock()
	r.clients[server.Name] = mcpClient
	for _, tool := range listed.Tools {
		if _, exists := r.byTool[tool.Name]; exists {
			r.logger.Warn("duplicate tool name, keeping first registration",
				zap.String("tool", tool.Name),
				zap.String("server", server.Name))
			continue
		}
		r.byTool[tool.Name] = mcpClient
		r.tools = append(r.tools, tool)
	}
	r.mu.Unlock()

	r.logger.Info("mcp server connected",
		zap.String("server", server.Name),
		zap.Int("tools", len(listed.Tools)))

	return nil
}

// normalizeURL canonicalizes a server URL to the streamable HTTP endpoint:
// trailing slashes are dropped, a legacy /sse suffix is removed, and the
// /mcp path is appended when absent.
func normalizeURL(url string) string {
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	url = strings.TrimSuffix(url, "/sse")
	url = strings.TrimRight(url, "/")
	if !strings.HasSuffix(url, "/mcp") {
		url += "/mcp"
	}
	return url
}

// Tools returns all registered tool definitions.
func (r *Registry) Tools() []mcptypes.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mcptypes.Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// HasTools reports whether any tools are registered.
func (r *Registry) HasTools() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools) > 0
}

// CallTool invokes a named tool on the server that owns it and returns the
// concatenated text content of the result.
func (r *Registry) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	session, ok := r.byTool[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown tool: %q", name)
	}

	result, err := session.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return "", fmt.Errorf("tool %q failed: %w", name, err)
	}

	var text strings.Builder
	for _, content := range result.Content {
		if tc, ok := content.(mcptypes.TextContent); ok {
			text.WriteString(tc.Text)
		}
	}
	if result.IsError {
		return "", fmt.Errorf("tool %q returned an error: %s", name, text.String())
	}
	return text.String(), nil
}

// Close tears down every session. Each close is bounded by the configured
// timeout so one hung server cannot stall shutdown; close errors are
// logged and swallowed.
func (r *Registry) Close() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*client.Client)
	r.byTool = make(map[string]*client.Client)
	r.tools = nil
	r.mu.Unlock()

	for name, session := range clients {
		done := make(chan error, 1)
		go func(c *client.Client) {
			done <- c.Close()
		}(session)

		select {
		case err := <-done:
			if err != nil {
				r.logger.Warn("mcp session close failed",
					zap.String("server", name),
					zap.Error(err))
			}
		case <-time.After(r.closeTimeout):
			r.logger.Warn("mcp session close timed out",
				zap.String("server", name))
		}
	}
}
