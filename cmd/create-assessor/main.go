// Package main 审核员账户创建工具
//
// 审核员账户不走自助注册，由运维在服务器上直接创建：
//
//	create-assessor -name "Jane Doe" -email jane@example.org -password secret
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"time"

	"portfolio-portal/internal/apiserver/auth"
	"portfolio-portal/internal/config"
	"portfolio-portal/internal/shared/model"
	"portfolio-portal/internal/shared/storage/dbutil"
	"portfolio-portal/internal/shared/storage/driver/postgres"
	"portfolio-portal/internal/shared/storage/driver/sqlite"
	"portfolio-portal/internal/shared/storage/repository"
)

func main() {
	name := flag.String("name", "", "审核员姓名")
	email := flag.String("email", "", "登录邮箱")
	password := flag.String("password", "", "初始密码")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("usage: create-assessor -name <name> -email <email> -password <password>")
	}

	cfg := config.Load()

	db, dialect, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := dialect.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	store := repository.NewStore(db, dialect)
	defer store.Close()

	ctx := context.Background()
	existing, err := store.GetUserByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("Failed to check existing user: %v", err)
	}
	if existing != nil {
		log.Fatalf("User already exists: %s (%s)", *email, existing.ID)
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	now := time.Now()
	creator := "create-assessor"
	user := &model.User{
		ID:           model.NewID("usr"),
		Name:         *name,
		Email:        *email,
		PasswordHash: hash,
		Role:         model.RoleAssessor,
		Approved:     true,
		ApprovedBy:   &creator,
		ApprovedAt:   &now,
		Active:       true,
		CreatedAt:    now,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		log.Fatalf("Failed to create assessor: %v", err)
	}

	fmt.Printf("Created assessor %s (%s)\n", *email, user.ID)
}

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
