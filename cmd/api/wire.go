package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/bryanwahyu/cerviscan/internal/config"
	"github.com/bryanwahyu/cerviscan/internal/domain/assignment"
	"github.com/bryanwahyu/cerviscan/internal/domain/screening"
	"github.com/bryanwahyu/cerviscan/internal/infra/cache"
	"github.com/bryanwahyu/cerviscan/internal/infra/db/mongodb"
	mysqlp "github.com/bryanwahyu/cerviscan/internal/infra/db/mysql"
	"github.com/bryanwahyu/cerviscan/internal/infra/db/postgres"
	"github.com/bryanwahyu/cerviscan/internal/middleware"
)

// stores groups the persistence adapters chosen by database.driver
type stores struct {
	records     screening.Repository
	failures    screening.FailureLog
	assignments assignment.Repository
	health      map[string]middleware.HealthChecker
	closers     []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	s := &stores{health: map[string]middleware.HealthChecker{}}

	switch cfg.Database.Driver {
	case "mongo":
		db, err := mongodb.Connect(ctx, cfg.Database.MongoURI, cfg.Database.Name)
		if err != nil {
			return nil, err
		}
		s.records = mongodb.NewAnalysisRepository(db)
		s.failures = mongodb.NewFailureRepository(db)
		s.assignments = mongodb.NewAssignmentRepository(db)
		s.health["mongo"] = mongoPing(db)
		s.closers = append(s.closers, func() { _ = db.Client().Disconnect(context.Background()) })
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		s.records = mysqlp.NewAnalysisRepository(db)
		s.failures = mysqlp.NewFailureRepository(db)
		s.assignments = mysqlp.NewAssignmentRepository(db)
		s.addSQL("mysql", db)
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		s.records = postgres.NewAnalysisRepository(db)
		s.failures = postgres.NewFailureRepository(db)
		s.assignments = postgres.NewAssignmentRepository(db)
		s.addSQL("postgres", db)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	// assignment lookups run on every review and read, cache them when redis is configured
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewClient(ctx, cache.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.assignments = cache.NewAssignmentChecker(s.assignments, rdb, cfg.Redis.AssignTTL, log.Named("cache"))
		s.health["redis"] = middleware.CheckFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		s.closers = append(s.closers, func() { _ = rdb.Close() })
	}
	return s, nil
}

func (s *stores) addSQL(name string, db *sql.DB) {
	s.health[name] = &middleware.DatabaseHealthChecker{DB: db}
	s.closers = append(s.closers, func() { _ = db.Close() })
}

func mongoPing(db *mongo.Database) middleware.CheckFunc {
	return func(ctx context.Context) error { return db.Client().Ping(ctx, nil) }
}
