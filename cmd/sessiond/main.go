package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/tendant/simple-session/pkg/authn"
	"github.com/tendant/simple-session/pkg/directory"
	"github.com/tendant/simple-session/pkg/session"
	"github.com/tendant/simple-session/pkg/session/api"
	"github.com/tendant/simple-session/pkg/sessionstore"
	"github.com/tendant/simple-session/pkg/tokencodec"
)

type SessionDbConfig struct {
	Host     string `env:"SESSION_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"SESSION_PG_PORT" env-default:"5432"`
	Database string `env:"SESSION_PG_DATABASE" env-default:"session_db"`
	User     string `env:"SESSION_PG_USER" env-default:"session"`
	Password string `env:"SESSION_PG_PASSWORD" env-default:"pwd"`
}

func (d SessionDbConfig) toDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" env-default:""`
	DB       int    `env:"REDIS_DB" env-default:"0"`
	// Retention bounds how long session records are kept, 0 keeps them forever
	Retention time.Duration `env:"REDIS_SESSION_RETENTION" env-default:"0"`
}

type JwtConfig struct {
	JwtSecret      string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer         string `env:"JWT_ISSUER" env-default:"simple-session"`
	Audience       string `env:"JWT_AUDIENCE" env-default:"simple-session"`
	CookieHttpOnly bool   `env:"COOKIE_HTTP_ONLY" env-default:"false"`
	CookieSecure   bool   `env:"COOKIE_SECURE" env-default:"false"`
}

type SessionConfig struct {
	// Backend selects the session store: postgres, redis or memory
	Backend          string        `env:"SESSION_STORE" env-default:"postgres"`
	SessionTTL       time.Duration `env:"SESSION_TTL" env-default:"168h"`
	ImpersonationTTL time.Duration `env:"IMPERSONATION_TTL" env-default:"24h"`
}

type Config struct {
	SessionDbConfig SessionDbConfig
	RedisConfig     RedisConfig
	JwtConfig       JwtConfig
	SessionConfig   SessionConfig
	AppConfig       app.AppConfig
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	godotenv.Load()

	config := Config{}
	cleanenv.ReadEnv(&config)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	var store sessionstore.Repository
	var directoryRepo directory.Repository

	switch config.SessionConfig.Backend {
	case "memory":
		slog.Warn("Using in-memory session store, sessions will not survive a restart")
		store = sessionstore.NewInMemoryRepository()
		users := directory.NewInMemoryRepository()
		seedDemoUser(users)
		directoryRepo = users
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.RedisConfig.Addr,
			Password: config.RedisConfig.Password,
			DB:       config.RedisConfig.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			slog.Error("Failed connecting to redis", "addr", config.RedisConfig.Addr, "err", err)
			os.Exit(-1)
		}
		store = sessionstore.NewRedisRepository(rdb, config.RedisConfig.Retention)

		// the user directory stays in postgres, only session records move to redis
		pool := mustDbPool(config.SessionDbConfig)
		directoryRepo = directory.NewPostgresRepository(pool)
	case "postgres":
		pool := mustDbPool(config.SessionDbConfig)
		store = sessionstore.NewPostgresRepository(pool)
		directoryRepo = directory.NewPostgresRepository(pool)
	default:
		slog.Error("Unknown session store backend", "backend", config.SessionConfig.Backend)
		os.Exit(-1)
	}

	codec := tokencodec.NewJwtCodec(
		config.JwtConfig.JwtSecret,
		config.JwtConfig.Issuer,
		config.JwtConfig.Audience,
	)

	directoryService := directory.NewService(directoryRepo)
	authenticator := authn.NewPasswordAuthenticator(directoryRepo)

	sessionService := session.NewService(
		codec,
		store,
		directoryService,
		authenticator,
		session.WithSessionTTL(config.SessionConfig.SessionTTL),
		session.WithImpersonationTTL(config.SessionConfig.ImpersonationTTL),
	)

	cookieSetter := api.NewCookieSetter(
		config.JwtConfig.CookieHttpOnly,
		config.JwtConfig.CookieSecure,
	)

	handler := api.NewHandler(sessionService, directoryService, cookieSetter)
	server.R.Route("/auth", handler.RegisterRoutes)

	server.Run()
}

func seedDemoUser(users *directory.InMemoryRepository) {
	hash, err := authn.HashPassword("password123")
	if err != nil {
		slog.Error("Failed hashing demo password", "err", err)
		os.Exit(-1)
	}
	user := users.AddUser(directory.User{
		Email:        "admin@example.com",
		Name:         "Demo Admin",
		PasswordHash: hash,
	})
	slog.Info("Seeded demo user", "email", user.Email, "password", "password123")
}

func mustDbPool(config SessionDbConfig) *pgxpool.Pool {
	dbConfig := config.toDbConfig()
	pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
		os.Exit(-1)
	}
	return pool
}
