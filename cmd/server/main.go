package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/voxbrix/voxbrix-server/internal/config"
	"github.com/voxbrix/voxbrix-server/internal/logging"
	"github.com/voxbrix/voxbrix-server/internal/server"
)

func main() {
	configPath := flag.String("config", "", "путь к файлу конфигурации (или ENV VOXBRIX_CONFIG)")
	flag.Parse()

	logging.SetLevel(logging.ParseLevel(os.Getenv("VOXBRIX_LOG_LEVEL")))
	if dir := os.Getenv("VOXBRIX_LOG_DIR"); dir != "" {
		if err := logging.SetupFileOutput(dir); err != nil {
			log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
		}
	}
	defer logging.Close()

	logger := logging.NewLogger("main")
	logger.Info("🎮 Запуск Voxbrix сервера...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("❌ Ошибка чтения конфигурации: %v", err)
		os.Exit(1)
	}
	if cfg == nil {
		cfg = &config.Config{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("📡 Получен сигнал %v, завершение работы...", sig)
		cancel()
	}()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		logger.Error("❌ Ошибка инициализации сервера: %v", err)
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("❌ Ошибка сервера: %v", err)
		os.Exit(1)
	}
}
