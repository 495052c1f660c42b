package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/tripcarbon/pkg/core"
	"github.com/NERVsystems/tripcarbon/pkg/monitoring"
	"github.com/NERVsystems/tripcarbon/pkg/tools"
	"github.com/NERVsystems/tripcarbon/pkg/trip"
)

// API is the REST host API. Every route is served by the MCP tool of the
// same purpose, so both surfaces return identical documents.
type API struct {
	logger   *slog.Logger
	handlers map[string]mcpserver.ToolHandlerFunc
	router   *gin.Engine
}

// NewAPI builds the REST routes over engine. A nil engine uses the curated
// catalog without a provider.
func NewAPI(engine *trip.Engine, health *monitoring.HealthChecker, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}

	a := &API{
		logger:   logger,
		handlers: make(map[string]mcpserver.ToolHandlerFunc),
		router:   gin.New(),
	}
	for _, def := range tools.NewRegistry(logger, engine, health).GetToolDefinitions() {
		a.handlers[def.Name()] = def.Handler
	}

	a.router.Use(gin.Recovery(), a.metrics())

	v1 := a.router.Group(APIPrefix)
	v1.POST("/emissions", a.postTool("compute_emissions"))
	v1.POST("/alternatives", a.postTool("compute_alternatives"))
	v1.POST("/plan", a.postTool("plan_trip"))
	v1.POST("/cost", a.postTool("estimate_cost"))
	v1.GET("/factors", a.handleFactors)
	v1.GET("/locations/suggest", a.handleSuggest)
	v1.GET("/locations/distance", a.handleDistance)
	v1.GET("/routes/popular", a.handlePopular)
	v1.GET("/routes/variants", a.handleVariants)
	v1.GET("/routes/compare", a.handleCompare)

	a.router.NoRoute(func(c *gin.Context) {
		writeAPIError(c.Writer, core.NewError(core.ErrNotFound, "no such endpoint: "+c.Request.URL.Path))
	})

	return a
}

// Handler returns the API as an http.Handler.
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		monitoring.RecordToolRequest("api "+c.Request.Method+" "+path, time.Since(start), status < http.StatusBadRequest)
		if status >= http.StatusInternalServerError {
			a.logger.Error("api request failed",
				"request_id", RequestIDFromContext(c.Request.Context()),
				"path", path,
				"status", status)
		}
	}
}

// postTool decodes the JSON body as the arguments of the named tool.
func (a *API) postTool(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var args map[string]any
		if err := c.ShouldBindJSON(&args); err != nil {
			writeAPIError(c.Writer, core.NewError(core.ErrInvalidInput, "request body must be a JSON object").
				WithGuidance(tools.GetToolUsageExample(name)))
			return
		}
		a.call(c, name, args)
	}
}

func (a *API) handleFactors(c *gin.Context) {
	args := map[string]any{}
	for _, k := range []string{"mode", "region"} {
		if v := c.Query(k); v != "" {
			args[k] = v
		}
	}
	if v, ok := c.GetQuery("distance_km"); ok {
		n, err := queryNumber("distance_km", v)
		if err != nil {
			writeAPIError(c.Writer, err)
			return
		}
		args["distance_km"] = n
	}
	a.call(c, "emission_factors", args)
}

func (a *API) handleSuggest(c *gin.Context) {
	a.call(c, "suggest_locations", map[string]any{"query": c.Query("q")})
}

func (a *API) handleDistance(c *gin.Context) {
	a.call(c, "location_distance", map[string]any{
		"from": c.Query("from"),
		"to":   c.Query("to"),
	})
}

func (a *API) handlePopular(c *gin.Context) {
	a.call(c, "popular_routes", nil)
}

func (a *API) handleCompare(c *gin.Context) {
	a.call(c, "compare_routes", map[string]any{
		"origin":      c.Query("origin"),
		"destination": c.Query("destination"),
	})
}

func (a *API) handleVariants(c *gin.Context) {
	args := map[string]any{
		"origin":      c.Query("origin"),
		"destination": c.Query("destination"),
	}
	for _, k := range []string{"max_waypoints", "num_variants"} {
		v, ok := c.GetQuery(k)
		if !ok {
			continue
		}
		n, err := queryNumber(k, v)
		if err != nil {
			writeAPIError(c.Writer, err)
			return
		}
		args[k] = n
	}
	a.call(c, "route_variants", args)
}

func queryNumber(name, raw string) (float64, *core.MCPError) {
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, core.NewError(core.ErrInvalidParameter, name+" must be a number").WithQuery(raw)
	}
	return n, nil
}

// call runs a tool and relays its document, mapping error results to the
// HTTP status of their code.
func (a *API) call(c *gin.Context, name string, args map[string]any) {
	handler, ok := a.handlers[name]
	if !ok {
		writeAPIError(c.Writer, core.NewError(core.ErrNotFound, "unknown tool "+name))
		return
	}

	result, err := handler(c.Request.Context(), tools.NewToolRequest(name, args))
	if err != nil {
		a.logger.Error("tool failed", "tool", name, "error", err)
		writeAPIError(c.Writer, core.NewError(core.ErrInternalError, "internal error"))
		return
	}

	body := tools.ResultText(result)
	if !result.IsError {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(body))
		return
	}

	var mcpErr core.MCPError
	if err := json.Unmarshal([]byte(body), &mcpErr); err != nil || mcpErr.Code == "" {
		writeAPIError(c.Writer, core.NewError(core.ErrInternalError, body))
		return
	}
	writeAPIError(c.Writer, &mcpErr)
}

// writeAPIError writes e with the status its code maps to.
func writeAPIError(w http.ResponseWriter, e *core.MCPError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.HTTPStatus())
	_ = json.NewEncoder(w).Encode(e)
}
