package market_test

import (
	"fmt"
	"testing"

	"github.com/garnizeh/servicehub/internal/market"
	"github.com/garnizeh/servicehub/pkg/models"
)

func note(i int, recipient string, requestID int64) models.Notification {
	return market.NewNotification(fmt.Sprintf("n%03d", i), models.KindStatus, "t", "b", requestID, recipient, int64(1000+i))
}

func TestFeed_RetentionPerRecipient(t *testing.T) {
	var f market.Feed
	f = f.Emit(note(0, "other@example.com", 1), market.DefaultRetention)
	for i := 1; i <= 25; i++ {
		f = f.Emit(note(i, "ann@example.com", 1), market.DefaultRetention)
	}

	mine := f.ForRecipientOldestFirst("ann@example.com")
	if len(mine) != 20 {
		t.Fatalf("expected 20 retained, got %d", len(mine))
	}
	if mine[0].ID != "n006" || mine[19].ID != "n025" {
		t.Fatalf("expected newest 20 kept, got first=%s last=%s", mine[0].ID, mine[19].ID)
	}
	if got := len(f.ForRecipient("other@example.com")); got != 1 {
		t.Fatalf("other recipient affected: got %d", got)
	}
}

func TestFeed_EmitDoesNotMutateReceiver(t *testing.T) {
	f := market.Feed{note(1, "a@example.com", 1)}
	g := f.Emit(note(2, "a@example.com", 1), 1)
	if len(f) != 1 || f[0].ID != "n001" {
		t.Fatalf("receiver mutated: %+v", f)
	}
	if len(g) != 1 || g[0].ID != "n002" {
		t.Fatalf("expected only the new entry with retention 1, got %+v", g)
	}
}

func TestFeed_ReadTracking(t *testing.T) {
	var f market.Feed
	f = f.Emit(note(1, "a@example.com", 7), 0)
	f = f.Emit(note(2, "a@example.com", 8), 0)
	f = f.Emit(note(3, "b@example.com", 7), 0)

	if got := f.UnreadCount("a@example.com"); got != 2 {
		t.Fatalf("unread: got %d want 2", got)
	}

	f = f.MarkRead("n001")
	f = f.MarkRead("missing")
	if got := f.UnreadCount("a@example.com"); got != 1 {
		t.Fatalf("unread after MarkRead: got %d want 1", got)
	}

	f = f.ClearForRequest(7, "b@example.com")
	if f.HasUnreadForRequest(7, "b@example.com") {
		t.Fatalf("expected request 7 cleared for b")
	}
	if !f.HasUnreadForRequest(8, "a@example.com") {
		t.Fatalf("expected request 8 still unread for a")
	}

	f = f.MarkAllRead("a@example.com")
	if got := f.UnreadCount("a@example.com"); got != 0 {
		t.Fatalf("unread after MarkAllRead: got %d", got)
	}
}

func TestFeed_ForRecipientNewestFirst(t *testing.T) {
	f := market.Feed{note(2, "a@example.com", 1), note(1, "a@example.com", 1), note(3, "a@example.com", 1)}
	got := f.ForRecipient("a@example.com")
	if got[0].ID != "n003" || got[2].ID != "n001" {
		t.Fatalf("unexpected order: %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestFeed_Changed(t *testing.T) {
	f := market.Feed{note(1, "a@example.com", 1)}
	if f.Changed(f.MarkRead("zzz")) {
		t.Fatalf("no-op mark reported a change")
	}
	if !f.Changed(f.MarkRead("n001")) {
		t.Fatalf("expected change after MarkRead")
	}
}
