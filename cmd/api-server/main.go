// Package main API Server 入口
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio-portal/internal/apiserver/auth"
	"portfolio-portal/internal/apiserver/server"
	"portfolio-portal/internal/config"
	"portfolio-portal/internal/shared/blobstore"
	"portfolio-portal/internal/shared/storage/dbutil"
	"portfolio-portal/internal/shared/storage/driver/postgres"
	"portfolio-portal/internal/shared/storage/driver/sqlite"
	"portfolio-portal/internal/shared/storage/repository"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换数据库和存储后端）
	cfg := config.Load()

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	// 初始化数据库
	db, dialect, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := dialect.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	store := repository.NewStore(db, dialect)
	defer store.Close()
	log.Printf("Connected to %s database", cfg.DatabaseDriver)

	// 初始化 blob 存储
	blobs, err := openBlobStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open blob storage: %v", err)
	}
	log.Printf("Blob storage backend: %s", cfg.Storage.Backend)

	authCfg := auth.Config{
		JWTSecret:        cfg.Auth.JWTSecret,
		TokenTTL:         cfg.Auth.TokenTTL,
		ResetTokenTTL:    cfg.Auth.ResetTokenTTL,
		ExposeResetToken: *cfg.Auth.ExposeResetToken,
	}

	// 管理员引导账户
	if err := auth.EnsureAdminUser(store, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		log.Fatalf("Failed to ensure admin user: %v", err)
	}

	h := server.NewHandler(store, blobs, authCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}

// openDatabase 按配置打开数据库连接并选定方言
func openDatabase(cfg *config.Config) (*sql.DB, dbutil.Dialect, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return db, &postgres.Dialect{}, nil
	default:
		db, err := sqlite.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return db, &sqlite.Dialect{}, nil
	}
}

// openBlobStore 按配置打开 blob 存储后端
func openBlobStore(cfg *config.Config) (blobstore.Store, error) {
	switch cfg.Storage.Backend {
	case "minio":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return blobstore.NewMinIO(ctx, cfg.Storage.MinIO)
	default:
		return blobstore.NewLocal(cfg.Storage.LocalDir)
	}
}
