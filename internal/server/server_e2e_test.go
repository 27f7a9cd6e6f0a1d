package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/ontoforge/ontoforge-go/internal/database"
	"github.com/ontoforge/ontoforge-go/internal/runtime"
)

// pickFreePort tries to get a free TCP port on 127.0.0.1
func pickFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func newTestServer(t *testing.T) *MCPServer {
	t.Helper()
	cfg := database.NewConfig()
	cfg.URL = fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	cfg.EmbeddingDims = 4
	dbm, err := database.NewDBManager(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbm.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := runtime.NewService(dbm, nil, log)
	return NewMCPServer(svc, dbm)
}

func TestSSEServer_ListTools(t *testing.T) {
	srv := newTestServer(t)

	port, err := pickFreePort()
	require.NoError(t, err)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	endpoint := "/sse"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start SSE server
	go func() { _ = srv.RunSSE(ctx, addr, endpoint) }()

	// wait briefly for server to bind
	time.Sleep(150 * time.Millisecond)

	// connect with MCP SSE client
	client := mcp.NewClient(&mcp.Implementation{Name: "e2e-client", Version: "test"}, nil)
	transport := mcp.NewSSEClientTransport("http://"+addr+endpoint, nil)

	// retry connect a few times to avoid flakes
	var session *mcp.ClientSession
	for i := 0; i < 5; i++ {
		session, err = client.Connect(ctx, transport)
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make(map[string]bool, len(tools.Tools))
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, expected := range []string{
		"get_schema", "provision_ontology",
		"create_entity", "list_entities", "get_entity", "update_entity", "delete_entity",
		"create_relation", "list_relations", "get_relation", "update_relation", "delete_relation",
		"get_neighbors", "semantic_search", "wipe_data", "health_check",
	} {
		require.True(t, names[expected], "missing tool %s", expected)
	}
}
