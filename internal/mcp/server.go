package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/litagent/research-core/internal/config"
	"github.com/litagent/research-core/internal/mcp/health"
	"github.com/litagent/research-core/internal/mcp/logging"
	"github.com/litagent/research-core/internal/mcp/protocol"
	"github.com/litagent/research-core/internal/mcp/tools"
	"github.com/litagent/research-core/internal/mcp/transport"
	"github.com/litagent/research-core/internal/research/metrics"
	"github.com/litagent/research-core/internal/wiring"
)

// Server is the research-orchestration-core MCP server: one JSON-RPC
// endpoint exposing the research_question tool, wired to the Orchestrator
// and its dependencies.
type Server struct {
	config       *config.Manager
	protocolCore *protocol.ProtocolCore
	router       *protocol.MessageRouter
	transport    transport.Transport
	mcpLogger    *logging.MCPLogger
	clientAudit  *logging.ClientAuditLogger
	health       *health.HealthChecker
	metrics      *metrics.Collector
	logger       *logrus.Logger
}

// NewServer wires every SPEC_FULL.md component (Search Providers, Chat
// Client, Judge, Synthesizer, Orchestrator) behind the generic MCP
// protocol/transport layer inherited from the teacher.
func NewServer(configManager *config.Manager) (*Server, error) {
	components, err := wiring.Build(configManager)
	if err != nil {
		return nil, fmt.Errorf("failed to wire research components: %w", err)
	}
	logger := components.Logger

	router := protocol.NewMessageRouter(logger)
	router.RegisterToolHandler("research_question", tools.NewResearchQuestionHandler(components.Orchestrator, logger))

	protocolCore := protocol.NewProtocolCore(logger)
	for _, method := range router.GetSupportedMethods() {
		protocolCore.RegisterHandler(method, router)
	}

	cfg := configManager.GetConfig()
	mcpLogger := logging.NewMCPLogger(logging.MCPLoggingConfig{
		Level:             cfg.Logging.Level,
		Format:            cfg.Logging.Format,
		EnableCorrelation: true,
		CorrelationTTL:    30 * time.Minute,
		MaxCorrelations:   1000,
	})

	clientAudit := logging.NewClientAuditLogger(logging.ClientAuditConfig{
		EnableAuditTrail: true,
		RetentionPeriod:  24 * time.Hour,
		HashClientData:   true,
		MaxTrailSize:     1000,
		CleanupInterval:  time.Hour,
	})

	return &Server{
		config:       configManager,
		protocolCore: protocolCore,
		router:       router,
		mcpLogger:    mcpLogger,
		clientAudit:  clientAudit,
		health:       components.Health,
		metrics:      components.Metrics,
		logger:       logger,
	}, nil
}

// Start runs the server over stdio until ctx is cancelled or the client
// closes the connection.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting research orchestration core MCP server")

	s.health.Start()
	defer s.health.Stop()

	stdio := transport.NewStdioTransport(s.logger)
	s.transport = stdio
	if err := stdio.Start(ctx); err != nil {
		return fmt.Errorf("failed to start stdio transport: %w", err)
	}

	const clientID = "stdio-client"
	const sessionID = "stdio-session"
	s.clientAudit.StartSession(sessionID, clientID, "stdio", logging.ConnectionInfo{
		Protocol:    "stdio",
		ConnectedAt: time.Now(),
	})
	defer s.clientAudit.EndSession(sessionID)

	for {
		select {
		case <-ctx.Done():
			return stdio.Close()
		default:
		}

		raw, err := stdio.ReadMessage()
		if err != nil {
			if stdio.IsClosed() {
				return nil
			}
			return fmt.Errorf("transport read failed: %w", err)
		}

		started := time.Now()
		opCtx, operationID := s.mcpLogger.StartOperation(ctx, "jsonrpc", clientID, nil)
		response, err := s.protocolCore.ProcessMessage(opCtx, clientID, raw)
		s.mcpLogger.EndOperation(opCtx, operationID, err == nil, len(response), err)

		if toolName, params, ok := parseToolCall(raw); ok {
			s.clientAudit.LogToolInvocation(sessionID, toolName, params, response, time.Since(started), err)
		}

		if err != nil {
			s.logger.WithError(err).Error("failed to process message")
			continue
		}
		if response == nil {
			continue
		}
		if err := stdio.WriteMessage(response); err != nil {
			return fmt.Errorf("transport write failed: %w", err)
		}
	}
}

// parseToolCall extracts the tool name and arguments from a raw tools/call
// JSON-RPC request, so tool invocations can be audited independently of the
// generic JSON-RPC request/response cycle.
func parseToolCall(raw []byte) (string, map[string]interface{}, bool) {
	var envelope struct {
		Method string `json:"method"`
		Params struct {
			Name      string                 `json:"name"`
			Arguments map[string]interface{} `json:"arguments"`
		} `json:"params"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Method != "tools/call" {
		return "", nil, false
	}
	return envelope.Params.Name, envelope.Params.Arguments, true
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.transport != nil {
		return s.transport.Close()
	}
	return nil
}
