package config

import (
	"fmt"

	"github.com/procline/procline/internal/procsrv/config"
)

type dbconncfg struct {
	host     string
	port     int
	dbname   string
	user     string
	password string
	sslmode  string
}

var proclineDbConn *dbconncfg

func init() {
	proclineDbConn = &dbconncfg{
		host:     "localhost",
		port:     5432,
		user:     "procline_api",
		password: "abc@123",
		dbname:   "procline",
		sslmode:  "disable",
	}
}

func ProclineDsn() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		proclineDbConn.host, proclineDbConn.port, proclineDbConn.user, proclineDbConn.password, proclineDbConn.dbname, proclineDbConn.sslmode)
}

const CompressLedgerEntries = config.CompressLedgerEntries
