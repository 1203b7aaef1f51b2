package main

import (
	"context"

	"github.com/agroadvisor/community/config"
	"github.com/agroadvisor/community/models"
	"github.com/agroadvisor/community/repository"
	"github.com/agroadvisor/community/routes"
	"github.com/agroadvisor/community/storage"
	"github.com/agroadvisor/community/utils"
)

func main() {
	cfg := config.Load()

	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	deps := routes.Dependencies{}
	switch cfg.DBDriver {
	case "memory":
		utils.Sugar.Warn("using in-memory database; data is lost on restart")
		deps.Posts = repository.NewMemoryPostRepository()
		deps.Users = repository.NewMemoryUserRepository()
	default:
		db := config.InitDatabase(&models.User{}, &models.Post{}, &models.Attachment{})
		deps.Posts = repository.NewGormPostRepository(db)
		deps.Users = repository.NewGormUserRepository(db)
	}

	store, err := storage.FromConfig(context.Background(), cfg)
	if err != nil {
		utils.Sugar.Fatalf("attachment store: %v", err)
	}
	deps.Store = store

	r := routes.SetupRouter(deps)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
