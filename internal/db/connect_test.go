package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
)

func openMem(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	d, err := Open(context.Background(), DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestOpenCreatesSchemaIdempotently(t *testing.T) {
	d := openMem(t)
	if err := ensureSchema(context.Background(), d, DriverSQLite); err != nil {
		t.Fatalf("second ensureSchema: %v", err)
	}
	for _, table := range []string{"users", "chat_groups", "questionnaires", "questionnaire_tags", "assignments", "responses", "event_log"} {
		var n int
		if err := d.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=$1`, table).Scan(&n); err != nil {
			t.Fatalf("lookup %s: %v", table, err)
		}
		if n != 1 {
			t.Fatalf("table %s missing", table)
		}
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), Driver("mysql"), ""); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestResponsesUniquePerAssignmentStudent(t *testing.T) {
	d := openMem(t)
	mustExec(t, d, `INSERT INTO users (id, full_name, role, created_at, updated_at) VALUES (1,'Mentor','mentor',0,0), (42,'Student','student',0,0)`)
	mustExec(t, d, `INSERT INTO chat_groups (id, title, created_at, updated_at) VALUES (100,'CS-1',0,0)`)
	mustExec(t, d, `INSERT INTO questionnaires (id, title, questions_json, created_by, created_at, updated_at) VALUES (1,'Q','[]',1,0,0)`)
	mustExec(t, d, `INSERT INTO assignments (id, questionnaire_id, group_id, name, start_at, deadline_at, created_by, created_at, updated_at)
		VALUES (7,1,100,'A',0,10,1,0,0)`)
	mustExec(t, d, `INSERT INTO responses (assignment_id, student_id, answers_json, submitted_at, created_at, updated_at) VALUES (7,42,'{}',1,1,1)`)

	if _, err := d.Exec(`INSERT INTO responses (assignment_id, student_id, answers_json, submitted_at, created_at, updated_at) VALUES (7,42,'{}',2,2,2)`); err == nil {
		t.Fatalf("duplicate (assignment, student) insert succeeded")
	}
}

func TestDeletingAssignmentCascadesResponses(t *testing.T) {
	d := openMem(t)
	mustExec(t, d, `INSERT INTO users (id, full_name, role, created_at, updated_at) VALUES (1,'Mentor','mentor',0,0), (42,'Student','student',0,0)`)
	mustExec(t, d, `INSERT INTO chat_groups (id, title, created_at, updated_at) VALUES (100,'CS-1',0,0)`)
	mustExec(t, d, `INSERT INTO questionnaires (id, title, questions_json, created_by, created_at, updated_at) VALUES (1,'Q','[]',1,0,0)`)
	mustExec(t, d, `INSERT INTO assignments (id, questionnaire_id, group_id, name, start_at, deadline_at, created_by, created_at, updated_at)
		VALUES (7,1,100,'A',0,10,1,0,0)`)
	mustExec(t, d, `INSERT INTO responses (assignment_id, student_id, answers_json, submitted_at, created_at, updated_at) VALUES (7,42,'{}',1,1,1)`)

	mustExec(t, d, `DELETE FROM assignments WHERE id=7`)
	var n int
	if err := d.QueryRow(`SELECT COUNT(*) FROM responses`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("responses after cascade = %d, want 0", n)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	d := openMem(t)
	boom := errors.New("boom")
	err := WithTx(context.Background(), d, nil, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO chat_groups (id, title, created_at, updated_at) VALUES (5,'G',0,0)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx err = %v, want boom", err)
	}
	var n int
	_ = d.QueryRow(`SELECT COUNT(*) FROM chat_groups`).Scan(&n)
	if n != 0 {
		t.Fatalf("rows after rollback = %d, want 0", n)
	}
}

func TestSplitSQL(t *testing.T) {
	got := splitSQL("CREATE TABLE a (x INT); -- note\n ; CREATE TABLE b (y INT);")
	if len(got) != 2 {
		t.Fatalf("splitSQL len = %d, want 2 (%q)", len(got), got)
	}
	if got[1] != "CREATE TABLE b (y INT);" {
		t.Fatalf("splitSQL[1] = %q", got[1])
	}
}

func mustExec(t *testing.T, d *sql.DB, q string, args ...any) {
	t.Helper()
	if _, err := d.Exec(q, args...); err != nil {
		t.Fatalf("exec %q: %v", firstLine(q), err)
	}
}
