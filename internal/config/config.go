// Package config loads the service configuration from the environment.
// A .env file is honored in development; real deployments set the variables
// directly or through Docker secrets.
package config

import (
	"strings"

	"github.com/joho/godotenv"

	"chatlink-backend/pkg/env"
)

// Config holds every setting the realtime service needs
type Config struct {
	Env      string
	HTTPPort int

	// CockroachDB (users, call history)
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Cassandra (messages)
	CassandraHosts    []string
	CassandraKeyspace string
	CassandraUser     string
	CassandraPassword string

	// Redis (presence mirror)
	RedisHost     string
	RedisPort     int
	RedisPassword string

	// MinIO (message media)
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOPublicURL string
	MinIOUseSSL    bool

	JWTSecret string
}

// Load reads the configuration from the environment, after loading a local
// .env file if one exists
func Load() *Config {
	// Missing .env is fine outside development
	_ = godotenv.Load()

	return &Config{
		Env:      env.GetString("ENV", "development"),
		HTTPPort: env.GetInt("HTTP_PORT", 8084),

		DBHost:     env.GetString("DB_HOST", "localhost"),
		DBPort:     env.GetInt("DB_PORT", 26257),
		DBUser:     env.GetString("DB_USER", "root"),
		DBPassword: env.GetStringFromFile("DB_PASSWORD", ""),
		DBName:     env.GetString("DB_NAME", "chatlink"),
		DBSSLMode:  env.GetString("DB_SSLMODE", "disable"),

		CassandraHosts:    splitHosts(env.GetString("CASSANDRA_HOSTS", "localhost")),
		CassandraKeyspace: env.GetString("CASSANDRA_KEYSPACE", "chatlink_ks"),
		CassandraUser:     env.GetString("CASSANDRA_USER", ""),
		CassandraPassword: env.GetStringFromFile("CASSANDRA_PASSWORD", ""),

		RedisHost:     env.GetString("REDIS_HOST", "localhost"),
		RedisPort:     env.GetInt("REDIS_PORT", 6379),
		RedisPassword: env.GetStringFromFile("REDIS_PASSWORD", ""),

		MinIOEndpoint:  env.GetString("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey: env.GetString("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey: env.GetStringFromFile("MINIO_SECRET_KEY", "minioadmin"),
		MinIOBucket:    env.GetString("MINIO_BUCKET", "chatlink-media"),
		MinIOPublicURL: env.GetString("MINIO_PUBLIC_URL", "http://localhost:9000"),
		MinIOUseSSL:    env.GetBool("MINIO_USE_SSL", false),

		JWTSecret: env.GetStringFromFile("JWT_SECRET", ""),
	}
}

func splitHosts(raw string) []string {
	parts := strings.Split(raw, ",")
	hosts := make([]string, 0, len(parts))
	for _, part := range parts {
		if host := strings.TrimSpace(part); host != "" {
			hosts = append(hosts, host)
		}
	}
	return hosts
}
