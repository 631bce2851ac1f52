package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/edwin001-tech/misused-senders/internal/config"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// ErrDatabase marks failures talking to the campaign database, as opposed to
// classification or reporting failures.
var ErrDatabase = errors.New("campaign database")

// Open connects to the campaign database described by cfg and pings it.
// password is used only when cfg.DSN is empty.
func Open(ctx context.Context, cfg config.Source, password string) (*sql.DB, error) {
	dsn, err := DSN(cfg, password)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrDatabase, err)
	}

	// One streaming cursor per run; a small pool is plenty.
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	timeout := time.Duration(cfg.ConnectTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrDatabase, err)
	}
	return db, nil
}

// Location is the zone created_at values are stored in. Empty means UTC.
func Location(cfg config.Source) (*time.Location, error) {
	if cfg.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("source timezone: %w", err)
	}
	return loc, nil
}

// DSN returns the driver DSN for cfg. For MySQL it is assembled with
// mysql.Config: times are read and bound in the source location, and the
// session time_zone is pinned to the same offset so NOW() and TIMESTAMP
// columns agree with it.
func DSN(cfg config.Source, password string) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	loc, err := Location(cfg)
	if err != nil {
		return "", err
	}
	switch cfg.Driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = password
		mc.Net = "tcp"
		mc.Addr = cfg.Host + ":" + strconv.Itoa(cfg.Port)
		mc.DBName = cfg.Database
		mc.ParseTime = true
		mc.Loc = loc
		mc.Params = map[string]string{"time_zone": "'" + sessionOffset(loc, time.Now()) + "'"}
		if cfg.ConnectTimeoutSeconds > 0 {
			mc.Timeout = time.Duration(cfg.ConnectTimeoutSeconds) * time.Second
		}
		return mc.FormatDSN(), nil
	case "sqlite":
		return "", errors.New("source.dsn is required for the sqlite driver")
	default:
		return "", fmt.Errorf("unsupported source driver %q", cfg.Driver)
	}
}

// sessionOffset formats loc's UTC offset at t as MySQL expects it
// ("+03:00"). Named zones need the server's tz tables; offsets do not.
func sessionOffset(loc *time.Location, t time.Time) string {
	_, off := t.In(loc).Zone()
	sign := '+'
	if off < 0 {
		sign = '-'
		off = -off
	}
	return fmt.Sprintf("%c%02d:%02d", sign, off/3600, off%3600/60)
}
