package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ServerIntegration управляет жизненным циклом HTTP-сервера REST API
type ServerIntegration struct {
	restServer *RestServer
	httpServer *http.Server
	listener   net.Listener
	errCh      chan error
}

// NewServerIntegration создаёт REST сервер и HTTP-обвязку вокруг него
func NewServerIntegration(config Config) (*ServerIntegration, error) {
	restServer, err := NewRestServer(config)
	if err != nil {
		return nil, err
	}
	return &ServerIntegration{
		restServer: restServer,
		errCh:      make(chan error, 1),
	}, nil
}

// Start открывает порт и запускает сервер в отдельной горутине
func (si *ServerIntegration) Start() error {
	ln, err := net.Listen("tcp", si.restServer.port)
	if err != nil {
		return fmt.Errorf("не удалось открыть порт REST API %s: %w", si.restServer.port, err)
	}
	si.listener = ln

	si.httpServer = &http.Server{
		Handler:           si.restServer.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := si.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			si.restServer.logger.Error("ошибка REST API сервера: %v", err)
			si.errCh <- err
		}
		close(si.errCh)
	}()

	log := si.restServer.logger
	log.Info("REST API сервер запущен на http://%s", ln.Addr())
	log.Info("   GET  /health")
	log.Info("   GET  /api/blocks/:x/:y")
	log.Info("   POST /api/blocks/:x/:y/mine")
	log.Info("   POST /api/blocks/:x/:y/place")
	log.Info("   POST /api/tick")
	log.Info("   GET  /api/chunks/:cx/:cy")
	log.Info("   GET  /api/stats")
	log.Info("   GET  /api/events (websocket)")
	log.Info("   GET  /metrics")

	return nil
}

// Addr возвращает фактический адрес сервера после Start
func (si *ServerIntegration) Addr() string {
	if si.listener == nil {
		return ""
	}
	return si.listener.Addr().String()
}

// Errors возвращает канал фатальных ошибок сервера; закрывается после остановки
func (si *ServerIntegration) Errors() <-chan error { return si.errCh }

// Stop останавливает сервер, дожидаясь завершения активных запросов
func (si *ServerIntegration) Stop(ctx context.Context) error {
	if si.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := si.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("остановка REST API: %w", err)
	}
	si.restServer.logger.Info("REST API сервер остановлен")
	return nil
}

// GetRestServer возвращает REST сервер
func (si *ServerIntegration) GetRestServer() *RestServer {
	return si.restServer
}
