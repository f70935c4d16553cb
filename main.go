package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"brickbox/server"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg := server.LoadConfig()
	var addr string
	flag.StringVar(&addr, "addr", cfg.Addr, "server listen address, e.g. :3000")
	flag.Parse()
	cfg.Addr = addr

	if err := server.InitLogger(cfg.LogFile); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	auth := server.NicknameAuth{DanielName: cfg.DanielName, AdminName: cfg.AdminName}
	manager := server.NewRoomManager(cfg, auth)
	_ = manager.GetOrCreateRoom(cfg.DefaultRoom)

	maps, err := server.NewMapStore(cfg.MapsDir)
	if err != nil {
		server.Log.Fatalf("map store: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", manager.HandleWS)
	mux.Handle("/", http.FileServer(http.Dir(cfg.WebDir)))
	mux.HandleFunc("/healthz", manager.HandleHealthz)
	mux.HandleFunc("/metrics", manager.HandleMetrics)
	mux.HandleFunc("/api/rooms", manager.HandleRooms)
	mux.Handle("/api/maps", maps)
	mux.Handle("/api/maps/", maps)

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		server.Log.Infof("brickbox listening on %s; open http://localhost%s/", cfg.Addr, cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	manager.StopAll()
}
