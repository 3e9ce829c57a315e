package vault

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v4/stdlib"
)

// ConnectionParams is the decrypted form of a connection profile, handed
// to the prober and to the execution layer. Instances must not be stored
// or logged.
type ConnectionParams struct {
	Host              string
	Port              int
	Username          string
	Password          string
	Database          string
	ConnectionTimeout int
	Encrypt           bool
}

func (p *ConnectionParams) dsn() string {
	sslmode := "disable"
	if p.Encrypt {
		sslmode = "require"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.Username, p.Password, p.Database, sslmode)
	if p.ConnectionTimeout > 0 {
		dsn += fmt.Sprintf(" connect_timeout=%d", p.ConnectionTimeout)
	}
	return dsn
}

// Prober checks whether a set of connection parameters reaches a live
// database. Implementations must honor ctx cancellation; the vault bounds
// every probe with the configured timeout.
type Prober interface {
	Probe(ctx context.Context, params *ConnectionParams) error
}

// postgresProber dials the customer database through the pgx stdlib
// driver and pings it.
type postgresProber struct{}

func (postgresProber) Probe(ctx context.Context, params *ConnectionParams) error {
	conn, err := sql.Open("pgx", params.dsn())
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.PingContext(ctx)
}
