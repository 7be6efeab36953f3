package database

import (
	"database/sql"
	"fmt"

	"tallybook/internal/config"
)

// Config holds database configuration
type Config struct {
	Host      string
	Port      string
	User      string
	Password  string
	DBName    string
	SSLMode   string
	Isolation sql.IsolationLevel
}

// NewConfig derives the database configuration from the application config.
func NewConfig(app *config.Config) *Config {
	isolation := sql.LevelSerializable
	if app.TxIsolation == config.IsolationReadCommitted {
		isolation = sql.LevelReadCommitted
	}
	return &Config{
		Host:      app.DBHost,
		Port:      app.DBPort,
		User:      app.DBUser,
		Password:  app.DBPassword,
		DBName:    app.DBName,
		SSLMode:   app.DBSSLMode,
		Isolation: isolation,
	}
}

// DSN returns the PostgreSQL connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URL returns the connection URL expected by golang-migrate.
func (c *Config) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// TxOptions returns the options every mutation transaction is opened with.
func (c *Config) TxOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: c.Isolation}
}
