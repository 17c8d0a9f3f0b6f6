package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/httptransport"
	"github.com/gomcp/mcpcore/pkg/mcp/protocol"
	"github.com/gomcp/mcpcore/pkg/mcp/server"
	"github.com/gomcp/mcpcore/pkg/mcp/transport"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	rt := httptransport.NewRouter(httptransport.Config{
		EventStoreCap: 64,
		NewServer: func(tr transport.Transport) (httptransport.Connectable, error) {
			srv := server.New(tr, server.Config{
				Capabilities: mcp.ServerCapabilities{Tools: &mcp.ToolsCapability{}},
			})
			require.NoError(t, srv.RegisterTool(mcp.Tool{Name: "echo"}, nil,
				func(ctx context.Context, arguments map[string]interface{}, extra *protocol.RequestExtra) (*mcp.CallToolResult, error) {
					return &mcp.CallToolResult{Content: []mcp.ContentPart{mcp.TextContent(arguments["message"].(string))}}, nil
				}))
			return srv, nil
		},
	})

	ts := httptest.NewServer(rt)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, ts *httptest.Server, sessionID string, msg *mcp.Message) (*http.Response, map[string]interface{}) {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/mcp", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if sessionID != "" {
		req.Header.Set(httptransport.SessionHeader, sessionID)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestInitializeAssignsSession(t *testing.T) {
	ts := newTestServer(t)

	req, err := mcp.NewRequest(mcp.NewID(1), "initialize", mcp.InitializeParams{
		ProtocolVersion: mcp.CurrentVersion,
		ClientInfo:      mcp.ClientInfo{Name: "test-client", Version: "0.0.1"},
	})
	require.NoError(t, err)

	resp, decoded := postJSON(t, ts, "", req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(httptransport.SessionHeader))
	require.Nil(t, decoded["error"])
}

func TestUnknownSessionRejected(t *testing.T) {
	ts := newTestServer(t)

	req, err := mcp.NewRequest(mcp.NewID(1), "tools/list", mcp.ListToolsParams{})
	require.NoError(t, err)

	resp, _ := postJSON(t, ts, "does-not-exist", req)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestToolCallRoundTripOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	initReq, err := mcp.NewRequest(mcp.NewID(1), "initialize", mcp.InitializeParams{
		ProtocolVersion: mcp.CurrentVersion,
		ClientInfo:      mcp.ClientInfo{Name: "test-client", Version: "0.0.1"},
	})
	require.NoError(t, err)
	resp, _ := postJSON(t, ts, "", initReq)
	sessionID := resp.Header.Get(httptransport.SessionHeader)
	require.NotEmpty(t, sessionID)

	initializedNotif, err := mcp.NewNotification("notifications/initialized", nil)
	require.NoError(t, err)
	notifResp, _ := postJSON(t, ts, sessionID, initializedNotif)
	require.Equal(t, http.StatusAccepted, notifResp.StatusCode)

	callReq, err := mcp.NewRequest(mcp.NewID(2), "tools/call", mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]interface{}{"message": "hello"},
	})
	require.NoError(t, err)

	callResp, decoded := postJSON(t, ts, sessionID, callReq)
	require.Equal(t, http.StatusOK, callResp.StatusCode)
	require.Nil(t, decoded["error"])

	result, ok := decoded["result"].(map[string]interface{})
	require.True(t, ok)
	content := result["content"].([]interface{})
	first := content[0].(map[string]interface{})
	require.Equal(t, "hello", first["text"])
}

func TestDeleteEndsSession(t *testing.T) {
	ts := newTestServer(t)

	initReq, err := mcp.NewRequest(mcp.NewID(1), "initialize", mcp.InitializeParams{
		ProtocolVersion: mcp.CurrentVersion,
		ClientInfo:      mcp.ClientInfo{Name: "test-client", Version: "0.0.1"},
	})
	require.NoError(t, err)
	resp, _ := postJSON(t, ts, "", initReq)
	sessionID := resp.Header.Get(httptransport.SessionHeader)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/mcp", nil)
	require.NoError(t, err)
	req.Header.Set(httptransport.SessionHeader, sessionID)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, delResp.StatusCode)

	listReq, err := mcp.NewRequest(mcp.NewID(2), "tools/list", mcp.ListToolsParams{})
	require.NoError(t, err)
	afterDelResp, _ := postJSON(t, ts, sessionID, listReq)
	require.Equal(t, http.StatusNotFound, afterDelResp.StatusCode)
}
