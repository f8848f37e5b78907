package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Config struct {
	// File is the path to a local sqlite database, `:memory:` is accepted.
	File string `json:"file"`
	// Url points to a remote libsql database, it takes precedence over File.
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (config Config) open() (*sql.DB, error) {
	if config.Url != "" {
		values := url.Values{}
		if config.AuthToken != "" {
			values.Add("authToken", config.AuthToken)
		}
		target := config.Url
		if len(values) > 0 {
			target += "?" + values.Encode()
		}
		return sql.Open("libsql", target)
	}

	if config.File == "" {
		return nil, fmt.Errorf("neither a database file nor url was specified")
	}
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		config.File,
	)
	sqlite, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite only supports a single writer, this also keeps `:memory:`
	// databases alive across queries
	sqlite.SetMaxOpenConns(1)
	return sqlite, nil
}

// Open opens the configured database and applies the schema.
func Open(ctx context.Context, config Config) (*sql.DB, error) {
	conn, err := config.open()
	if err != nil {
		return nil, err
	}
	_, err = conn.ExecContext(ctx, Schema)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return conn, nil
}
