package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-survey/internal/survey"
)

type Event struct {
	Seq       int64           `json:"seq"`
	ID        string          `json:"id"`
	SiteID    string          `json:"site_id"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"created_at"`
}

// EventRepo is an append-only log that downstream deliverers tail by seq.
type EventRepo struct {
	db     *sql.DB
	siteID string
	now    func() time.Time
}

func NewEventRepo(db *sql.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{db: db, siteID: siteID, now: time.Now}
}

func (r *EventRepo) Append(ctx context.Context, typ, key string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	e := Event{ID: uuid.NewString(), SiteID: r.siteID, Type: typ, Key: key, Data: raw, CreatedAt: r.now().Unix()}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO event_log (id, site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING seq`,
		e.ID, e.SiteID, e.Type, e.Key, string(raw), e.CreatedAt).Scan(&e.Seq)
	return e, err
}

// List returns events with seq > since in order.
func (r *EventRepo) List(ctx context.Context, since int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, id, site_id, typ, key, data, created_at
		   FROM event_log WHERE seq > $1 ORDER BY seq ASC LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var (
			e    Event
			data string
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.SiteID, &e.Type, &e.Key, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Notify records a notification in the outbox. A bot or mailer delivers from there.
func (r *EventRepo) Notify(ctx context.Context, n survey.Notification) error {
	_, err := r.Append(ctx, string(n.Kind), strconv.FormatInt(n.AssignmentID, 10), n)
	return err
}

var _ survey.Notifier = (*EventRepo)(nil)
