package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "bcast/pkg/logx"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "directory.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *Store, stmts ...string) {
	t.Helper()
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			t.Fatalf("seed %q: %v", q, err)
		}
	}
}

func TestDirectoryReads(t *testing.T) {
	s := openTest(t)
	seed(t, s,
		`INSERT INTO categories(id, name) VALUES ('cat1', 'VIP'), ('cat2', 'Trial')`,
		`INSERT INTO contacts(id, name, phone, email) VALUES
			('c1', 'Ann', '+100', 'ann@example.com'),
			('c2', 'Bob', '+200', NULL)`,
		`INSERT INTO contact_categories(contact_id, category_id) VALUES ('c1', 'cat1'), ('c1', 'cat2')`,
		`INSERT INTO senders(id, label, phone, connected) VALUES
			('s1', 'main', '+900', 1),
			('s2', 'spare', '+901', 0)`,
		`INSERT INTO templates(id, name, body) VALUES ('t1', 'welcome', 'Hi {name}!')`,
	)
	ctx := context.Background()

	contacts, err := s.Contacts(ctx)
	if err != nil {
		t.Fatalf("Contacts: %v", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("contacts = %d, want 2", len(contacts))
	}
	if contacts[0].Name != "Ann" || len(contacts[0].CategoryIDs) != 2 {
		t.Errorf("contact[0] = %+v", contacts[0])
	}
	if contacts[1].Email != "" || contacts[1].CategoryIDs != nil {
		t.Errorf("contact[1] = %+v", contacts[1])
	}

	senders, err := s.Senders(ctx)
	if err != nil {
		t.Fatalf("Senders: %v", err)
	}
	if len(senders) != 2 || !senders[0].Connected || senders[1].Connected {
		t.Errorf("senders = %+v", senders)
	}

	tpl, err := s.Template(ctx, "t1")
	if err != nil {
		t.Fatalf("Template: %v", err)
	}
	if tpl.Body != "Hi {name}!" {
		t.Errorf("template body = %q", tpl.Body)
	}
	if _, err := s.Template(ctx, "missing"); err == nil {
		t.Error("Template(missing) should fail")
	}

	cats, err := s.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != 2 || cats[1].Name != "VIP" {
		t.Errorf("categories = %+v", cats)
	}
}

func TestAppendAudit(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	entries := []AuditEntry{
		{Action: "submit", Target: "camp1", TookMS: 12},
		{Action: "start", Target: "camp1"},
		{Action: "stop", Target: "camp1", Error: "engine timeout", At: time.Now()},
	}
	for _, e := range entries {
		if err := s.AppendAudit(ctx, e); err != nil {
			t.Fatalf("AppendAudit(%s): %v", e.Action, err)
		}
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM audit`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("audit rows = %d, want 3", n)
	}

	var errMsg string
	if err := s.db.QueryRow(`SELECT err FROM audit WHERE action = 'stop'`).Scan(&errMsg); err != nil {
		t.Fatalf("select: %v", err)
	}
	if errMsg != "engine timeout" {
		t.Errorf("err = %q", errMsg)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}, logx.Nop()); err == nil {
		t.Fatal("Open with empty path should fail")
	}
}
