package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gomcp/mcpcore/pkg/mcp"
	"github.com/gomcp/mcpcore/pkg/mcp/protocol"
)

// ResourceHandler reads one resource's current contents.
type ResourceHandler func(ctx context.Context, uri string) (*mcp.ReadResourceResult, error)

// RegisterResource adds a fixed-URI resource with its read handler.
func (s *Server) RegisterResource(def mcp.Resource, handler ResourceHandler) error {
	s.resourcesMu.Lock()
	defer s.resourcesMu.Unlock()
	if _, exists := s.resources[def.URI]; exists {
		return fmt.Errorf("server: resource %q is already registered", def.URI)
	}
	s.resources[def.URI] = def
	s.resourceReads[def.URI] = handler
	return nil
}

// RegisterResourceTemplate advertises a URI template. Templated reads
// still need a matching fixed-URI registration once the concrete
// resource is known to the server, or a host-level router that
// resolves template instances before calling ReadResource.
func (s *Server) RegisterResourceTemplate(tmpl mcp.ResourceTemplate) {
	s.resourcesMu.Lock()
	defer s.resourcesMu.Unlock()
	s.templates = append(s.templates, tmpl)
}

// NotifyResourceUpdated tells subscribed clients that uri changed, if
// this connection currently has a live subscription for it.
func (s *Server) NotifyResourceUpdated(ctx context.Context, uri string) error {
	s.resourcesMu.RLock()
	_, subscribed := s.subscriptions[uri]
	s.resourcesMu.RUnlock()
	if !subscribed {
		return nil
	}
	return s.proto.SendNotification(ctx, "notifications/resources/updated", mcp.ResourceUpdatedParams{URI: uri})
}

// NotifyResourceListChanged tells the client the resource list changed.
func (s *Server) NotifyResourceListChanged(ctx context.Context) error {
	return s.proto.SendNotification(ctx, "notifications/resources/list_changed", nil)
}

func (s *Server) registerResourceHandlers() {
	s.proto.RegisterRequestHandler("resources/list",
		func() bool { return s.config.Capabilities.Resources != nil },
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			s.resourcesMu.RLock()
			defer s.resourcesMu.RUnlock()
			list := make([]mcp.Resource, 0, len(s.resources))
			for _, r := range s.resources {
				list = append(list, r)
			}
			return mcp.ListResourcesResult{Resources: list}, nil
		})

	s.proto.RegisterRequestHandler("resources/templates/list",
		func() bool { return s.config.Capabilities.Resources != nil },
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			s.resourcesMu.RLock()
			defer s.resourcesMu.RUnlock()
			return mcp.ListResourceTemplatesResult{ResourceTemplates: append([]mcp.ResourceTemplate(nil), s.templates...)}, nil
		})

	s.proto.RegisterRequestHandler("resources/read",
		func() bool { return s.config.Capabilities.Resources != nil },
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			var p mcp.ReadResourceParams
			if err := decode(params, &p); err != nil {
				return nil, mcp.InvalidParams(err.Error())
			}
			s.resourcesMu.RLock()
			handler, ok := s.resourceReads[p.URI]
			s.resourcesMu.RUnlock()
			if !ok {
				return nil, mcp.InvalidParams(fmt.Sprintf("unknown resource %q", p.URI))
			}
			return handler(ctx, p.URI)
		})

	s.proto.RegisterRequestHandler("resources/subscribe",
		func() bool { return s.config.Capabilities.Resources != nil && s.config.Capabilities.Resources.Subscribe },
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			var p mcp.SubscribeParams
			if err := decode(params, &p); err != nil {
				return nil, mcp.InvalidParams(err.Error())
			}
			s.resourcesMu.Lock()
			s.subscriptions[p.URI] = struct{}{}
			s.resourcesMu.Unlock()
			return struct{}{}, nil
		})

	s.proto.RegisterRequestHandler("resources/unsubscribe",
		func() bool { return s.config.Capabilities.Resources != nil && s.config.Capabilities.Resources.Subscribe },
		func(ctx context.Context, params json.RawMessage, extra *protocol.RequestExtra) (interface{}, error) {
			var p mcp.UnsubscribeParams
			if err := decode(params, &p); err != nil {
				return nil, mcp.InvalidParams(err.Error())
			}
			s.resourcesMu.Lock()
			delete(s.subscriptions, p.URI)
			s.resourcesMu.Unlock()
			return struct{}{}, nil
		})
}
