package market

import (
	"sort"

	"github.com/garnizeh/servicehub/pkg/models"
)

// DefaultRetention is how many notifications each recipient keeps.
const DefaultRetention = 20

// Feed is the notification log. Methods never modify the receiver; they
// return a new Feed.
type Feed []models.Notification

// NewNotification builds an unread notification.
func NewNotification(id string, kind models.NotificationKind, title, body string, requestID int64, recipient string, created int64) models.Notification {
	return models.Notification{
		ID:             id,
		Kind:           kind,
		Title:          title,
		Body:           body,
		RequestID:      requestID,
		RecipientEmail: recipient,
		Created:        created,
	}
}

// Emit appends n and evicts the oldest entries of n's recipient beyond
// retention. Other recipients are untouched. retention <= 0 uses DefaultRetention.
func (f Feed) Emit(n models.Notification, retention int) Feed {
	if retention <= 0 {
		retention = DefaultRetention
	}
	n.Read = false
	out := append(f.clone(), n)

	mine := out.ForRecipientOldestFirst(n.RecipientEmail)
	excess := len(mine) - retention
	if excess <= 0 {
		return out
	}

	evict := make(map[string]struct{}, excess)
	for _, old := range mine[:excess] {
		evict[old.ID] = struct{}{}
	}
	kept := out[:0]
	for _, x := range out {
		if _, gone := evict[x.ID]; gone && x.RecipientEmail == n.RecipientEmail {
			continue
		}
		kept = append(kept, x)
	}
	return kept
}

// MarkRead flips one notification to read. Unknown ids are ignored.
func (f Feed) MarkRead(id string) Feed {
	return f.mark(func(n models.Notification) bool { return n.ID == id })
}

// MarkAllRead flips every notification of recipient to read.
func (f Feed) MarkAllRead(recipient string) Feed {
	return f.mark(func(n models.Notification) bool { return n.RecipientEmail == recipient })
}

// ClearForRequest marks the recipient's notifications about requestID as read.
func (f Feed) ClearForRequest(requestID int64, recipient string) Feed {
	return f.mark(func(n models.Notification) bool {
		return n.RequestID == requestID && n.RecipientEmail == recipient
	})
}

func (f Feed) UnreadCount(recipient string) int {
	c := 0
	for _, n := range f {
		if n.RecipientEmail == recipient && !n.Read {
			c++
		}
	}
	return c
}

func (f Feed) HasUnreadForRequest(requestID int64, recipient string) bool {
	for _, n := range f {
		if n.RequestID == requestID && n.RecipientEmail == recipient && !n.Read {
			return true
		}
	}
	return false
}

// ForRecipient returns the recipient's notifications newest first.
func (f Feed) ForRecipient(recipient string) Feed {
	out := f.ForRecipientOldestFirst(recipient)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ForRecipientOldestFirst orders by timestamp, then id.
func (f Feed) ForRecipientOldestFirst(recipient string) Feed {
	out := Feed{}
	for _, n := range f {
		if n.RecipientEmail == recipient {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Created != out[j].Created {
			return out[i].Created < out[j].Created
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Changed reports whether any notification differs in read state from g.
func (f Feed) Changed(g Feed) bool {
	if len(f) != len(g) {
		return true
	}
	for i := range f {
		if f[i].ID != g[i].ID || f[i].Read != g[i].Read {
			return true
		}
	}
	return false
}

func (f Feed) mark(match func(models.Notification) bool) Feed {
	out := f.clone()
	for i := range out {
		if match(out[i]) {
			out[i].Read = true
		}
	}
	return out
}

func (f Feed) clone() Feed {
	return append(Feed{}, f...)
}
