package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/eventbus"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	srv   *RestServer
	world *world.WorldManager
	bus   eventbus.EventBus
	reg   *prometheus.Registry
}

// coalConfig мир, где каждый блок уголь
func coalConfig() config.WorldConfig {
	cfg := config.DefaultWorld()
	cfg.Streaming.Workers = 2
	cfg.Streaming.LoadRadius = 1
	cfg.Streaming.UnloadRadius = 2
	cfg.Terrain.StretchMin = 0
	cfg.Terrain.StretchMax = 1
	cfg.Terrain.Thresholds = config.Thresholds{Water: 0.01, Sand: 0.02, Grass: 0.03, Stone: 0.99}
	cfg.Resources.Coal = 1
	cfg.Resources.Diamond = 0
	cfg.Resources.Lava = 0
	return cfg
}

func newFixture(t *testing.T, cfg config.WorldConfig, withBus bool) *fixture {
	t.Helper()

	reg := prometheus.NewRegistry()
	metrics, err := world.NewMetrics(reg)
	require.NoError(t, err)

	f := &fixture{reg: reg}
	opts := []world.Option{world.WithMetrics(metrics)}
	if withBus {
		f.bus = eventbus.NewMemoryBus(256)
		opts = append(opts, world.WithEventBus(f.bus))
		t.Cleanup(func() { _ = f.bus.Close() })
	}

	f.world, err = world.NewWorldManager(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.world.Close(context.Background()) })

	f.srv, err = NewRestServer(Config{
		World:    f.world,
		Bus:      f.bus,
		Registry: reg,
		Logger:   logging.NewWriterLogger("api", io.Discard, logging.ERROR),
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	var resp apiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "ответ не JSON: %s", rec.Body.String())
	}
	return rec, resp
}

func TestSchemasCompile(t *testing.T) {
	schemas, err := compileSchemas()
	require.NoError(t, err)
	assert.Contains(t, schemas, schemaPlace)
	assert.Contains(t, schemas, schemaTick)
}

func TestNewRestServerRequiresWorld(t *testing.T) {
	_, err := NewRestServer(Config{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, config.DefaultWorld(), false)

	rec, resp := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Contains(t, string(resp.Data), f.world.Meta().WorldID)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-Id"), "ожидался trace-ID в заголовке")
}

func TestGetBlockMatchesGenerator(t *testing.T) {
	f := newFixture(t, config.DefaultWorld(), false)
	gen := f.world.Generator()

	for _, p := range []vec.Vec2{{X: 0, Y: 0}, {X: -5, Y: 17}, {X: 1234, Y: -987}} {
		path := "/api/blocks/" + strconv.Itoa(p.X) + "/" + strconv.Itoa(p.Y)
		rec, resp := f.do(t, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)

		var b BlockResponse
		require.NoError(t, json.Unmarshal(resp.Data, &b))
		assert.Equal(t, gen.BlockAt(p.X, p.Y), b.Type, "блок %v", p)
		assert.Equal(t, p.X, b.X)
		assert.Equal(t, p.Y, b.Y)
	}
}

func TestGetBlockRejectsBadCoordinates(t *testing.T) {
	f := newFixture(t, config.DefaultWorld(), false)

	rec, resp := f.do(t, http.MethodGet, "/api/blocks/abc/0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)

	rec, _ = f.do(t, http.MethodGet, "/api/blocks/0/"+strconv.Itoa(vec.MaxCoord*4), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMineAndPlace(t *testing.T) {
	f := newFixture(t, coalConfig(), false)

	rec, resp := f.do(t, http.MethodPost, "/api/blocks/3/5/mine", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var b BlockResponse
	require.NoError(t, json.Unmarshal(resp.Data, &b))
	assert.Equal(t, block.Dirt, b.Type, "добытый уголь превращается в землю")

	_, resp = f.do(t, http.MethodGet, "/api/blocks/3/5", "")
	require.NoError(t, json.Unmarshal(resp.Data, &b))
	assert.Equal(t, block.Dirt, b.Type)

	rec, resp = f.do(t, http.MethodPost, "/api/blocks/3/5/place", `{"type":"lava"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, &b))
	assert.Equal(t, block.Lava, b.Type)

	rec, resp = f.do(t, http.MethodPost, "/api/blocks/3/5/mine", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "лаву нельзя добыть")
	assert.False(t, resp.Success)

	assert.Equal(t, world.ChunkLoadedDirty, f.world.ChunkState(vec.Vec2{X: 0, Y: 0}))
}

func TestPlaceValidatesBody(t *testing.T) {
	f := newFixture(t, config.DefaultWorld(), false)

	cases := []struct {
		name string
		body string
	}{
		{"не JSON", `type=stone`},
		{"нет типа", `{}`},
		{"лишнее поле", `{"type":"stone","hp":3}`},
		{"тип не строка", `{"type":5}`},
		{"неизвестный тип", `{"type":"unobtainium"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, resp := f.do(t, http.MethodPost, "/api/blocks/1/1/place", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.False(t, resp.Success)
		})
	}

	assert.Equal(t, world.ChunkUnloaded, f.world.ChunkState(vec.Vec2{X: 0, Y: 0}),
		"отклонённые запросы не трогают мир")
}

func TestTick(t *testing.T) {
	f := newFixture(t, coalConfig(), false)

	rec, resp := f.do(t, http.MethodPost, "/api/tick", `{"x":0,"y":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report world.TickReport
	require.NoError(t, json.Unmarshal(resp.Data, &report))
	assert.Equal(t, 9, report.Loaded, "радиус загрузки 1 даёт 3×3 чанка")
	assert.Equal(t, 9, report.Resident)

	for _, body := range []string{`{"x":1.5,"y":0}`, `{"x":"a","y":0}`, `{"x":0}`} {
		rec, _ = f.do(t, http.MethodPost, "/api/tick", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestGetChunk(t *testing.T) {
	f := newFixture(t, coalConfig(), false)

	rec, resp := f.do(t, http.MethodGet, "/api/chunks/-1/2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var chunk struct {
		Coords vec.Vec2     `json:"coords"`
		Side   int          `json:"side"`
		Blocks []block.Type `json:"blocks"`
		State  string       `json:"state"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &chunk))
	assert.Equal(t, vec.Vec2{X: -1, Y: 2}, chunk.Coords)
	assert.Equal(t, 16, chunk.Side)
	require.Len(t, chunk.Blocks, 16*16)
	assert.Equal(t, block.Coal, chunk.Blocks[0])
	assert.Equal(t, world.ChunkLoadedClean.String(), chunk.State)
}

func TestStatsAndMetrics(t *testing.T) {
	f := newFixture(t, coalConfig(), true)

	f.do(t, http.MethodGet, "/api/blocks/0/0", "")

	rec, resp := f.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		World    world.WorldStats `json:"world"`
		Eventbus *eventbus.Stats  `json:"eventbus"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 1, stats.World.Resident)
	assert.Equal(t, uint64(1), stats.World.Generated)
	assert.NotNil(t, stats.Eventbus, "статистика шины при подключённой шине")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(mrec, req)
	require.Equal(t, http.StatusOK, mrec.Code)
	body := mrec.Body.String()
	assert.Contains(t, body, "blockworld_world_chunks_generated_total 1")
	assert.Contains(t, body, "rest_api_http_request_duration_seconds")
}

func TestEventsWithoutBus(t *testing.T) {
	f := newFixture(t, config.DefaultWorld(), false)

	rec, resp := f.do(t, http.MethodGet, "/api/events", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, resp.Success)
}

func TestEventsWebsocketStreamsBlockChanges(t *testing.T) {
	f := newFixture(t, coalConfig(), true)

	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events?types=" + eventbus.TypeBlockChanged
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	resp, err := http.Post(ts.URL+"/api/blocks/7/-2/mine", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err, "ожидалось событие в websocket")

	var msg EventMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, eventbus.TypeBlockChanged, msg.EventType, "фильтр пропускает только block.changed")

	var payload eventbus.BlockChanged
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, vec.Vec2{X: 7, Y: -2}, payload.Pos)
	assert.Equal(t, block.Coal, payload.Previous)
	assert.Equal(t, block.Dirt, payload.Current)
	assert.Equal(t, "mine", payload.Intent)
}

func TestStatusForMapsWorldErrors(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(world.ErrOutOfRange))
	assert.Equal(t, http.StatusBadRequest, statusFor(world.ErrUnknownBlock))
	assert.Equal(t, http.StatusConflict, statusFor(world.ErrNotMinable))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(world.ErrClosed))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}
