package syncx

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-survey/internal/db"
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

func TestNotifyAppendsAndListsInOrder(t *testing.T) {
	ctx := context.Background()
	d, err := db.Open(ctx, db.DriverSQLite, "file:eventlog_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer d.Close()

	repo := NewEventRepo(d, "")
	at := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 3; i++ {
		n := survey.Notification{Kind: survey.NotifyAssignmentCreated, AssignmentID: i, GroupID: -100, Title: "Check-in", DeadlineAt: at}
		if err := repo.Notify(ctx, n); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}

	all, err := repo.List(ctx, 0, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].SiteID != "local" || all[0].Type != "assignment_created" || all[0].Key != "1" || all[0].ID == "" {
		t.Fatalf("event = %+v", all[0])
	}
	var got survey.Notification
	if err := json.Unmarshal(all[2].Data, &got); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if got.AssignmentID != 3 || !got.DeadlineAt.Equal(at) {
		t.Fatalf("payload = %+v", got)
	}

	tail, err := repo.List(ctx, all[1].Seq, 10)
	if err != nil || len(tail) != 1 || tail[0].Seq != all[2].Seq {
		t.Fatalf("tail = %v, %v", tail, err)
	}
}
