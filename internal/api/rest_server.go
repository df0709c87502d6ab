package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/blockworld/internal/eventbus"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/middleware"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
)

// RestServer представляет REST API сервер мира
type RestServer struct {
	router   *gin.Engine
	world    *world.WorldManager
	bus      eventbus.EventBus
	port     string
	metrics  *ServerMetrics
	logger   *logging.Logger
	schemas  map[string]*jsonschema.Schema
	upgrader websocket.Upgrader
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port     string              // адрес для запуска сервера, например ":8088"
	World    *world.WorldManager // менеджер мира
	Bus      eventbus.EventBus   // шина событий; nil отключает /api/events
	Registry *prometheus.Registry
	Logger   *logging.Logger
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) (*RestServer, error) {
	if config.World == nil {
		return nil, errors.New("api: не задан менеджер мира")
	}
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if config.Logger == nil {
		config.Logger = logging.GetServerLogger()
	}

	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	// === Observability middleware ===
	router.Use(otelgin.Middleware("rest_api"))
	router.Use(middleware.NewRequestLogger(config.Logger).Handler())

	promMw, err := middleware.NewPrometheusMiddleware("rest_api", config.Registry)
	if err != nil {
		return nil, err
	}
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Registry)

	server := &RestServer{
		router:  router,
		world:   config.World,
		bus:     config.Bus,
		port:    config.Port,
		metrics: NewServerMetrics(),
		logger:  config.Logger,
		schemas: schemas,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	server.setupRoutes()

	return server, nil
}

// Handler возвращает http.Handler сервера
func (rs *RestServer) Handler() http.Handler { return rs.router }

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.Use(corsMiddleware())

	api := rs.router.Group("/api")
	{
		api.GET("/blocks/:x/:y", rs.handleGetBlock)
		api.POST("/blocks/:x/:y/mine", rs.handleMine)
		api.POST("/blocks/:x/:y/place", validateBody(rs.schemas[schemaPlace]), rs.handlePlace)
		api.POST("/tick", validateBody(rs.schemas[schemaTick]), rs.handleTick)
		api.GET("/chunks/:cx/:cy", rs.handleGetChunk)
		api.GET("/stats", rs.handleStats)
		api.GET("/events", rs.handleEvents)
	}

	rs.router.GET("/health", rs.handleHealth)
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// BlockResponse описывает блок мира
type BlockResponse struct {
	X        int        `json:"x"`
	Y        int        `json:"y"`
	Type     block.Type `json:"type"`
	Walkable bool       `json:"walkable"`
	Minable  bool       `json:"minable"`
	Hardness float64    `json:"hardness,omitempty"`
}

// PlaceRequest тело запроса установки блока
type PlaceRequest struct {
	Type string `json:"type"`
}

// TickRequest тело запроса шага стриминга
type TickRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ChunkResponse снимок чанка с его состоянием
type ChunkResponse struct {
	*world.ChunkSnapshot
	State string `json:"state"`
}

func newBlockResponse(pos vec.Vec2, t block.Type) BlockResponse {
	resp := BlockResponse{X: pos.X, Y: pos.Y, Type: t}
	if props, ok := block.Get(t); ok {
		resp.Walkable = props.Walkable
		resp.Minable = props.Minable
		resp.Hardness = props.Hardness
	}
	return resp
}

// parsePair разбирает пару целочисленных параметров пути
func parsePair(c *gin.Context, a, b string) (vec.Vec2, error) {
	x, err := strconv.Atoi(c.Param(a))
	if err != nil {
		return vec.Vec2{}, fmt.Errorf("%w: параметр %s=%q", world.ErrOutOfRange, a, c.Param(a))
	}
	y, err := strconv.Atoi(c.Param(b))
	if err != nil {
		return vec.Vec2{}, fmt.Errorf("%w: параметр %s=%q", world.ErrOutOfRange, b, c.Param(b))
	}
	return vec.Vec2{X: x, Y: y}, nil
}

// handleGetBlock возвращает тип блока
func (rs *RestServer) handleGetBlock(c *gin.Context) {
	pos, err := parsePair(c, "x", "y")
	if err != nil {
		rs.respondError(c, err)
		return
	}

	t, err := rs.world.GetBlock(c.Request.Context(), pos)
	if err != nil {
		rs.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "OK",
		Data:    newBlockResponse(pos, t),
	})
}

// handleMine добывает блок
func (rs *RestServer) handleMine(c *gin.Context) {
	pos, err := parsePair(c, "x", "y")
	if err != nil {
		rs.respondError(c, err)
		return
	}

	t, err := rs.world.SetBlock(c.Request.Context(), pos, 0, world.IntentMine)
	if err != nil {
		rs.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Блок добыт",
		Data:    newBlockResponse(pos, t),
	})
}

// handlePlace ставит блок указанного типа
func (rs *RestServer) handlePlace(c *gin.Context) {
	pos, err := parsePair(c, "x", "y")
	if err != nil {
		rs.respondError(c, err)
		return
	}

	var req PlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	t, err := block.Parse(req.Type)
	if err != nil {
		rs.respondError(c, fmt.Errorf("%w: %v", world.ErrUnknownBlock, err))
		return
	}

	t, err = rs.world.SetBlock(c.Request.Context(), pos, t, world.IntentPlace)
	if err != nil {
		rs.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Блок установлен",
		Data:    newBlockResponse(pos, t),
	})
}

// handleTick сообщает позицию игрока и выполняет шаг стриминга чанков
func (rs *RestServer) handleTick(c *gin.Context) {
	var req TickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	report, err := rs.world.Tick(c.Request.Context(), vec.Vec2{X: req.X, Y: req.Y})
	if err != nil {
		rs.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "OK",
		Data:    report,
	})
}

// handleGetChunk возвращает снимок чанка
func (rs *RestServer) handleGetChunk(c *gin.Context) {
	coords, err := parsePair(c, "cx", "cy")
	if err != nil {
		rs.respondError(c, err)
		return
	}

	snap, err := rs.world.Chunk(c.Request.Context(), coords)
	if err != nil {
		rs.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "OK",
		Data: ChunkResponse{
			ChunkSnapshot: snap,
			State:         rs.world.ChunkState(coords).String(),
		},
	})
}

// handleStats возвращает статистику мира и сервера
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := map[string]interface{}{
		"world": rs.world.Stats(),
		"server": map[string]interface{}{
			"uptime": rs.metrics.GetUptime(),
			"memory": rs.metrics.GetDetailedMemoryStats(),
		},
	}
	if rs.bus != nil {
		stats["eventbus"] = rs.bus.Metrics()
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	meta := rs.world.Meta()
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "OK",
		Data: map[string]interface{}{
			"world_id": meta.WorldID,
			"seed":     meta.Seed,
			"uptime":   rs.metrics.GetUptime(),
		},
	})
}
