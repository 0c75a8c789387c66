package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// WaitForShutdown 监听退出信号（SIGINT/SIGTERM）或外部上下文取消，执行优雅关闭
// stop 上下文由 SelfMonitor 的 stop 动作触发，与外部信号等价处理
func WaitForShutdown(stop context.Context, logger *zap.Logger, timeout time.Duration, shutdownFunc func() error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// 阻塞等待信号或内部停止请求
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-stop.Done():
		logger.Info("internal stop requested")
	}

	// 超时控制关闭逻辑
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	go func() {
		if err := shutdownFunc(); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
		cancel()
	}()

	<-ctx.Done()
	logger.Info("shutdown completed")
}
