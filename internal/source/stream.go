package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/edwin001-tech/misused-senders/internal/config"
	"github.com/edwin001-tech/misused-senders/internal/domain"
)

// Stream runs query once and hands its rows to fn in pages of batchSize.
// Only one page is held at a time. It returns the number of rows read.
func Stream(ctx context.Context, db *sql.DB, query string, args []any, batchSize int, fn func([]domain.Record) error) (int, error) {
	return streamIn(ctx, db, query, args, batchSize, time.UTC, fn)
}

// streamIn is Stream with zone-less created_at text read in loc.
func streamIn(ctx context.Context, db *sql.DB, query string, args []any, batchSize int, loc *time.Location, fn func([]domain.Record) error) (int, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: query: %v", ErrDatabase, err)
	}
	defer rows.Close()

	total := 0
	page := make([]domain.Record, 0, batchSize)
	for rows.Next() {
		var r domain.Record
		created := timeValue{loc: loc}
		var msg, senderID, senderType sql.NullString
		if err := rows.Scan(&msg, &senderID, &senderType, &created); err != nil {
			return total, fmt.Errorf("%w: scan: %v", ErrDatabase, err)
		}
		r.Message = msg.String
		r.SenderID = senderID.String
		r.SenderIDType = senderType.String
		r.CreatedAt = created.t
		page = append(page, r)

		if len(page) == batchSize {
			total += len(page)
			if err := fn(page); err != nil {
				return total, err
			}
			page = make([]domain.Record, 0, batchSize)
		}
	}
	if err := rows.Err(); err != nil {
		return total, fmt.Errorf("%w: rows: %v", ErrDatabase, err)
	}
	if len(page) > 0 {
		total += len(page)
		if err := fn(page); err != nil {
			return total, err
		}
	}
	return total, nil
}

// Campaigns is the configured campaign query bound to an open database.
type Campaigns struct {
	DB           *sql.DB
	Query        string
	ExpectedType string
	Window       time.Duration
	BatchSize    int
	Location     *time.Location
	Now          func() time.Time
}

func NewCampaigns(db *sql.DB, cfg config.Source) (*Campaigns, error) {
	q, err := BuildQuery(cfg.Schema, cfg.CampaignsTable, cfg.SenderIDsTable)
	if err != nil {
		return nil, err
	}
	loc, err := Location(cfg)
	if err != nil {
		return nil, err
	}
	return &Campaigns{
		DB:           db,
		Query:        q,
		ExpectedType: cfg.ExpectedType,
		Window:       time.Duration(cfg.WindowHours) * time.Hour,
		BatchSize:    cfg.BatchSize,
		Location:     loc,
		Now:          time.Now,
	}, nil
}

// Stream pages through every campaign sent within the window under a sender
// ID registered as the expected type.
func (c *Campaigns) Stream(ctx context.Context, fn func([]domain.Record) error) (int, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	args := []any{Cutoff(now(), c.Window, loc), c.ExpectedType}
	return streamIn(ctx, c.DB, c.Query, args, c.BatchSize, loc, fn)
}

// timeValue scans created_at whether the driver returns time.Time (MySQL
// with parseTime) or text (SQLite). Text without a zone is read in loc.
type timeValue struct {
	t   time.Time
	loc *time.Location
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func (v *timeValue) location() *time.Location {
	if v.loc == nil {
		return time.UTC
	}
	return v.loc
}

func (v *timeValue) Scan(src any) error {
	switch x := src.(type) {
	case nil:
		v.t = time.Time{}
		return nil
	case time.Time:
		v.t = x.In(v.location())
		return nil
	case []byte:
		return v.parse(string(x))
	case string:
		return v.parse(x)
	default:
		return fmt.Errorf("created_at: unsupported type %T", src)
	}
}

func (v *timeValue) parse(s string) error {
	s = strings.TrimSpace(s)
	loc := v.location()
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			v.t = t.In(loc)
			return nil
		}
	}
	return fmt.Errorf("created_at: cannot parse %q", s)
}

// PerRun opens a fresh connection for every Stream call and closes it
// afterwards, so a long-lived process holds no idle connection between
// daily runs and a database outage surfaces as a failed run.
type PerRun struct {
	Cfg      config.Source
	Password string
	Now      func() time.Time
}

func (p *PerRun) Stream(ctx context.Context, fn func([]domain.Record) error) (int, error) {
	db, err := Open(ctx, p.Cfg, p.Password)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	c, err := NewCampaigns(db, p.Cfg)
	if err != nil {
		return 0, err
	}
	if p.Now != nil {
		c.Now = p.Now
	}
	return c.Stream(ctx, fn)
}
