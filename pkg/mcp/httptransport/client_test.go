package httptransport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/client"
	"github.com/gomcp/mcpcore/pkg/mcp/httptransport"
	"github.com/gomcp/mcpcore/pkg/mcp/protocol"
	"github.com/gomcp/mcpcore/pkg/mcp/schema"
	"github.com/gomcp/mcpcore/pkg/mcp/server"
	"github.com/gomcp/mcpcore/pkg/mcp/transport"
)

// recordingAuthProvider is a minimal auth.AuthProvider that always has a
// valid token, recording how many times it was consulted so the test
// can assert the client transport actually exercises it.
type recordingAuthProvider struct {
	mu         sync.Mutex
	tokenCalls int
}

func (a *recordingAuthProvider) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokenCalls++
	return "test-access-token", nil
}

func (a *recordingAuthProvider) Refresh(ctx context.Context) error { return nil }

func (a *recordingAuthProvider) RedirectToAuthorization(ctx context.Context, state string) (string, error) {
	return "https://auth.example/authorize?state=" + state, nil
}

func (a *recordingAuthProvider) FinishAuth(ctx context.Context, code, verifier string) error {
	return nil
}

func (a *recordingAuthProvider) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tokenCalls
}

func TestClientTransportRoundTripWithAuth(t *testing.T) {
	var mu sync.Mutex
	var gotAuthHeader string

	rt := httptransport.NewRouter(httptransport.Config{
		EventStoreCap: 64,
		Authenticate: func(r *http.Request) (interface{}, error) {
			mu.Lock()
			gotAuthHeader = r.Header.Get("Authorization")
			mu.Unlock()
			return nil, nil
		},
		NewServer: func(tr transport.Transport) (httptransport.Connectable, error) {
			srv := server.New(tr, server.Config{
				Capabilities: mcp.ServerCapabilities{Tools: &mcp.ToolsCapability{}},
			})
			echoSchema := schema.Object{
				Properties: map[string]schema.Schema{"message": schema.String{}},
				Required:   []string{"message"},
			}
			require.NoError(t, srv.RegisterTool(mcp.Tool{Name: "echo", InputSchema: schema.Serialize(echoSchema)}, echoSchema,
				func(ctx context.Context, arguments map[string]interface{}, extra *protocol.RequestExtra) (*mcp.CallToolResult, error) {
					return &mcp.CallToolResult{Content: []mcp.ContentPart{mcp.TextContent(arguments["message"].(string))}}, nil
				}))
			return srv, nil
		},
	})

	ts := httptest.NewServer(rt)
	defer ts.Close()

	provider := &recordingAuthProvider{}
	ct := httptransport.NewClientTransport(httptransport.ClientConfig{
		URL:  ts.URL + "/mcp",
		Auth: provider,
	})

	cli := client.New(ct, client.Config{})
	require.NoError(t, cli.Connect(context.Background()))
	defer cli.Close()

	result, err := cli.CallTool(context.Background(), "echo", map[string]interface{}{"message": "hi"}, nil)
	require.NoError(t, err)
	require.Equal(t, "hi", result.Content[0].Text)

	require.Greater(t, provider.calls(), 0, "the client transport must consult AuthProvider.Token on outbound requests")
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "Bearer test-access-token", gotAuthHeader)
}
