package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/colthorp/proximity-cli/internal/core"
	"github.com/colthorp/proximity-cli/internal/proximity"
)

// MCP Protocol types
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type MCPToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type MCPInitializeResult struct {
	ProtocolVersion string        `json:"protocolVersion"`
	ServerInfo      MCPServerInfo `json:"serverInfo"`
	Capabilities    interface{}   `json:"capabilities"`
}

// GeocodeParams are the parameters for the geocode tool
type GeocodeParams struct {
	Address string `json:"address"`
}

// NearbySearchParams are the parameters for the nearby_search tool
type NearbySearchParams struct {
	Query        string   `json:"query"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
	RadiusMeters int      `json:"radius_meters"`
	MaxPages     int      `json:"max_pages"`
	Refresh      bool     `json:"refresh"`
	SinglePage   bool     `json:"single_page"`
	Type         string   `json:"type"`
}

// DistanceParams are the parameters for the distance tool
type DistanceParams struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Mode        string `json:"mode"`
}

// mcpServer answers JSON-RPC requests read line by line from in.
type mcpServer struct {
	svc *proximity.Service
	in  io.Reader

	mu  sync.Mutex
	out io.Writer
}

func newMCPServer(svc *proximity.Service, in io.Reader, out io.Writer) *mcpServer {
	return &mcpServer{svc: svc, in: in, out: out}
}

// serve runs until in is exhausted or ctx is cancelled.
func (s *mcpServer) serve(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	// Increase buffer size for large messages
	const maxCapacity = 10 * 1024 * 1024 // 10MB
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			// The ID is unknown, so no response is sent.
			zap.L().Warn("mcp: parse error", zap.Error(err))
			continue
		}

		s.handle(ctx, &req)
	}

	if err := scanner.Err(); err != nil {
		return eris.Wrap(err, "mcp: read stdin")
	}
	return nil
}

func (s *mcpServer) handle(ctx context.Context, req *MCPRequest) {
	switch req.Method {
	case "initialize":
		s.handleInitialize(req)
	case "initialized", "notifications/initialized":
		return
	case "tools/list":
		s.handleToolsList(req)
	case "tools/call":
		s.handleToolsCall(ctx, req)
	default:
		// Notifications (no ID) are ignored per JSON-RPC.
		if req.ID != nil {
			s.sendError(req.ID, -32601, "Method not found", req.Method)
		}
	}
}

func (s *mcpServer) handleInitialize(req *MCPRequest) {
	s.sendResponse(req.ID, MCPInitializeResult{
		ProtocolVersion: "2024-11-05",
		ServerInfo: MCPServerInfo{
			Name:    "proximity-cli",
			Version: core.Version,
		},
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{},
		},
	})
}

func stringProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func (s *mcpServer) handleToolsList(req *MCPRequest) {
	tools := []MCPToolInfo{
		{
			Name:        "geocode",
			Description: "Resolve an address to coordinates. Results are cached; an address is sent to the provider at most once.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"address": stringProp("Free-form address, e.g. 'Długa 1, Gdańsk'"),
				},
				"required": []string{"address"},
			},
		},
		{
			Name:        "city_center",
			Description: "Return the coordinates of the configured city centre.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "nearby_search",
			Description: "List places matching an amenity query around a centre, following result pages. A query that was already searched is answered from the cache unless refresh is set.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": stringProp("Amenity query, e.g. 'zabka' or 'stacja paliw'"),
					"lat":   map[string]interface{}{"type": "number", "description": "Centre latitude (default: city centre)"},
					"lng":   map[string]interface{}{"type": "number", "description": "Centre longitude (default: city centre)"},
					"radius_meters": map[string]interface{}{
						"type":    "integer",
						"default": core.DefaultRadiusMeters,
					},
					"max_pages": map[string]interface{}{
						"type":    "integer",
						"default": core.DefaultMaxPages,
					},
					"refresh":     map[string]interface{}{"type": "boolean", "default": false},
					"single_page": map[string]interface{}{"type": "boolean", "default": false},
					"type":        stringProp("Optional provider place type filter"),
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "distance",
			Description: "Travel distance in meters from origin to destination. Both are 'lat,lng' strings or addresses.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"origin":      stringProp("Origin as 'lat,lng' or an address"),
					"destination": stringProp("Destination as 'lat,lng' or an address"),
					"mode": map[string]interface{}{
						"type":    "string",
						"enum":    []string{"walking", "driving", "bicycling", "transit"},
						"default": core.DefaultTravelMode,
					},
				},
				"required": []string{"origin", "destination"},
			},
		},
		{
			Name:        "cache_stats",
			Description: "Entry counts and locations of the geocode, amenity and distance stores.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}

	s.sendResponse(req.ID, map[string]interface{}{"tools": tools})
}

func (s *mcpServer) handleToolsCall(ctx context.Context, req *MCPRequest) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(req.ID, -32602, "Invalid params", err.Error())
		return
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	var (
		result interface{}
		err    error
	)
	switch params.Name {
	case "geocode":
		result, err = s.callGeocode(ctx, params.Arguments)
	case "city_center":
		result, err = s.callCityCenter(ctx)
	case "nearby_search":
		result, err = s.callNearbySearch(ctx, params.Arguments)
	case "distance":
		result, err = s.callDistance(ctx, params.Arguments)
	case "cache_stats":
		result = s.svc.Stats()
	default:
		s.sendError(req.ID, -32602, "Unknown tool", params.Name)
		return
	}

	if err != nil {
		zap.L().Warn("mcp: tool failed", zap.String("tool", params.Name), zap.Error(err))
		s.sendToolError(req.ID, err.Error())
		return
	}
	s.sendToolResult(req.ID, result)
}

func (s *mcpServer) callGeocode(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args GeocodeParams
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, eris.Wrap(err, "invalid arguments")
	}
	result, err := s.svc.Geocode(ctx, args.Address)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"address":    args.Address,
		"candidates": result,
		"found":      len(result) > 0,
	}, nil
}

func (s *mcpServer) callCityCenter(ctx context.Context) (interface{}, error) {
	center, err := s.svc.CityCenter(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"address":    s.svc.Options().CityCenterAddress,
		"coordinate": center,
	}, nil
}

func (s *mcpServer) callNearbySearch(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args NearbySearchParams
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, eris.Wrap(err, "invalid arguments")
	}

	var center proximity.Coordinate
	var err error
	switch {
	case args.Lat != nil && args.Lng != nil:
		center, err = proximity.NewCoordinate(*args.Lat, *args.Lng)
	case args.Lat != nil || args.Lng != nil:
		err = eris.New("lat and lng must be given together")
	default:
		center, err = s.svc.CityCenter(ctx)
	}
	if err != nil {
		return nil, err
	}

	bucket, err := s.svc.Search(ctx, proximity.NearbyQuery{
		Query:        args.Query,
		Center:       center,
		RadiusMeters: args.RadiusMeters,
		MaxPages:     args.MaxPages,
		BypassCache:  args.Refresh,
		SinglePage:   args.SinglePage,
		Type:         args.Type,
	})
	if err != nil {
		return nil, err
	}
	places := bucket.Records()
	return map[string]interface{}{
		"query":        args.Query,
		"center":       center,
		"places_count": len(places),
		"places":       places,
	}, nil
}

func (s *mcpServer) callDistance(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args DistanceParams
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, eris.Wrap(err, "invalid arguments")
	}
	mode, err := proximity.ParseTravelMode(args.Mode)
	if err != nil {
		return nil, err
	}
	if args.Mode == "" {
		mode = s.svc.Options().DefaultMode
	}

	origin, err := resolvePoint(ctx, s.svc, args.Origin)
	if err != nil {
		return nil, err
	}
	destination, err := resolvePoint(ctx, s.svc, args.Destination)
	if err != nil {
		return nil, err
	}

	meters, err := s.svc.Distance(ctx, origin, destination, mode)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"origin":      origin,
		"destination": destination,
		"mode":        mode,
		"meters":      meters,
	}, nil
}

func (s *mcpServer) write(resp MCPResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		zap.L().Error("mcp: encode response", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.out, string(data))
}

func (s *mcpServer) sendResponse(id interface{}, result interface{}) {
	s.write(MCPResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *mcpServer) sendError(id interface{}, code int, message, data string) {
	s.write(MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	})
}

func (s *mcpServer) sendToolResult(id interface{}, result interface{}) {
	s.sendResponse(id, map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": mustMarshal(result),
			},
		},
	})
}

func (s *mcpServer) sendToolError(id interface{}, message string) {
	s.sendResponse(id, map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": message,
			},
		},
		"isError": true,
	})
}

func mustMarshal(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return string(data)
}
