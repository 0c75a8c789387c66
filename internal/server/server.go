// Package server 提供HTTP服务核心功能：Prometheus指标暴露与健康检查端点，
// 支持非阻塞启动与优雅关闭。
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/metrics-agent/config"
	"github.com/metrics-agent/pkg/logger"
)

// HTTPServer HTTP服务实例，封装监听地址与底层服务器对象
type HTTPServer struct {
	addr   string
	server *http.Server
}

// statusWriter 包装http.ResponseWriter以捕获响应状态码
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// httpShutdownTimeout 优雅关闭超时时间
const httpShutdownTimeout = 5 * time.Second

// NewHTTPServer 创建HTTP服务实例
// 1. /metrics 暴露注册器中全部指标
// 2. /health 健康检查，返回200 OK
// 3. 超时参数取自配置
func NewHTTPServer(cfg config.ServerConfig, gatherer prometheus.Gatherer) *HTTPServer {
	mux := http.NewServeMux()

	logRequest := func(r *http.Request, msg string, statusCode int, start time.Time) {
		logger.Debug(
			msg,
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", statusCode),
			zap.Duration("duration", time.Since(start)),
		)
	}

	metricsHandler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(logger.GetLogger()),
	})
	mux.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}
		metricsHandler.ServeHTTP(ww, r)
		logRequest(r, "metrics request received", ww.status, start)
	}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
		logRequest(r, "health check received", http.StatusOK, start)
	})

	return &HTTPServer{
		addr: cfg.Addr,
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Start 启动HTTP服务（非阻塞），监听错误在子goroutine中记录
func (s *HTTPServer) Start() {
	logger.Info(
		"starting HTTP server",
		zap.String("listen_addr", s.addr),
		zap.Duration("read_timeout", s.server.ReadTimeout),
		zap.Duration("write_timeout", s.server.WriteTimeout),
		zap.Duration("idle_timeout", s.server.IdleTimeout),
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				logger.Info("HTTP server stopped listening", zap.String("listen_addr", s.addr))
				return
			}
			logger.Fatal("HTTP server failed to listen",
				zap.Error(err),
				zap.String("listen_addr", s.addr))
		}
	}()
}

// Shutdown 优雅关闭：停止接收新请求，等待现有请求完成或超时
func (s *HTTPServer) Shutdown() error {
	logger.Info("shutting down HTTP server", zap.String("listen_addr", s.addr))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			return nil
		}
		logger.Error("HTTP server shutdown failed", zap.Error(err), zap.String("listen_addr", s.addr))
		return err
	}
	logger.Info("HTTP server shutdown complete", zap.String("listen_addr", s.addr))
	return nil
}
