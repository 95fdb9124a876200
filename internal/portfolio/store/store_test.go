package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nsip/otf-reporter/internal/portfolio"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "portfolio.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestTemplates(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	missing, err := st.TemplateByResource(ctx, "res-1")
	if err != nil {
		t.Fatalf("query missing template: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected no template, got %+v", missing)
	}

	tpl, err := st.AddTemplate(ctx, portfolio.Template{Kind: portfolio.KindBinder, Title: "Reflection", ResourceID: "res-1"})
	if err != nil {
		t.Fatalf("add template: %v", err)
	}
	if tpl.Key == 0 || tpl.Kind != portfolio.KindBinder || tpl.Title != "Reflection" {
		t.Fatalf("unexpected template: %+v", tpl)
	}

	again, err := st.AddTemplate(ctx, portfolio.Template{Kind: portfolio.KindBinder, Title: "Reflection 2", ResourceID: "res-1"})
	if err != nil {
		t.Fatalf("re-add template: %v", err)
	}
	if again.Key != tpl.Key || again.Title != "Reflection 2" {
		t.Fatalf("expected updated template with same key, got %+v", again)
	}
}

func TestCopies(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	tpl, err := st.AddTemplate(ctx, portfolio.Template{Kind: portfolio.KindBinder, Title: "Reflection", ResourceID: "res-1"})
	if err != nil {
		t.Fatalf("add template: %v", err)
	}

	cp, err := st.FindCopy(ctx, 7, tpl.Key, "course-1", "node-1")
	if err != nil || cp != nil {
		t.Fatalf("expected no copy, got %+v, %v", cp, err)
	}

	deadline := time.Date(2021, 6, 30, 12, 0, 0, 0, time.UTC)
	cp, err = st.AssignCopy(ctx, 7, *tpl, "course-1", "node-1", &deadline)
	if err != nil {
		t.Fatalf("assign copy: %v", err)
	}
	if cp.Status != portfolio.StatusOpen || cp.CopyDate == nil || cp.ReturnDate != nil {
		t.Fatalf("unexpected new copy: %+v", cp)
	}
	if cp.Deadline == nil || !cp.Deadline.Equal(deadline) {
		t.Fatalf("expected deadline %v, got %v", deadline, cp.Deadline)
	}

	second, err := st.AssignCopy(ctx, 7, *tpl, "course-1", "node-1", nil)
	if err != nil {
		t.Fatalf("re-assign copy: %v", err)
	}
	if second.Key != cp.Key {
		t.Fatalf("expected existing copy %d, got %d", cp.Key, second.Key)
	}

	deleted, err := st.SetStatus(ctx, cp.Key, portfolio.StatusDeleted)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if deleted.Status != portfolio.StatusDeleted {
		t.Fatalf("expected deleted status, got %s", deleted.Status)
	}

	returned := time.Date(2021, 7, 2, 9, 30, 0, 0, time.UTC)
	withReturn, err := st.SetReturnDate(ctx, cp.Key, returned)
	if err != nil {
		t.Fatalf("set return date: %v", err)
	}
	if withReturn.ReturnDate == nil || !withReturn.ReturnDate.Equal(returned) {
		t.Fatalf("expected return date %v, got %v", returned, withReturn.ReturnDate)
	}

	if _, err := st.SetStatus(ctx, 999, portfolio.StatusOpen); err != portfolio.ErrNoCopy {
		t.Fatalf("expected ErrNoCopy for unknown copy, got %v", err)
	}
}

func TestPanelPreferences(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_, found, err := st.PanelOpen(ctx, 7, "comment::1::node-1")
	if err != nil || found {
		t.Fatalf("expected nothing stored, got found=%v err=%v", found, err)
	}

	if err := st.SavePanel(ctx, 7, "comment::1::node-1", false); err != nil {
		t.Fatalf("save panel: %v", err)
	}
	open, found, err := st.PanelOpen(ctx, 7, "comment::1::node-1")
	if err != nil || !found || open {
		t.Fatalf("expected closed panel, got open=%v found=%v err=%v", open, found, err)
	}

	if err := st.SavePanel(ctx, 7, "comment::1::node-1", true); err != nil {
		t.Fatalf("save panel: %v", err)
	}
	open, _, _ = st.PanelOpen(ctx, 7, "comment::1::node-1")
	if !open {
		t.Fatalf("expected open panel after update")
	}
}
