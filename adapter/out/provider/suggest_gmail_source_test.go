package provider

import (
	"testing"

	"google.golang.org/api/gmail/v1"

	"suggest_server/core/domain"
)

func TestGmailWatermark_AdvancesOnNewerMail(t *testing.T) {
	stored := &domain.IngestCursor{
		UserID:         "u1",
		Provider:       domain.ProviderGmail,
		LastInternalMs: 1_000,
		LastMessageID:  "m-old",
		LastHistoryID:  7,
	}

	w := newGmailWatermark(stored)
	w.observe(&gmail.Message{Id: "m-new", InternalDate: 2_000, HistoryId: 9})
	w.observe(&gmail.Message{Id: "m-mid", InternalDate: 1_500, HistoryId: 8})

	cursor := w.cursor("u1")
	if cursor == nil {
		t.Fatal("cursor should advance when newer mail was seen")
	}
	if cursor.LastInternalMs != 2_000 {
		t.Errorf("LastInternalMs = %d, want 2000", cursor.LastInternalMs)
	}
	if cursor.LastMessageID != "m-new" {
		t.Errorf("LastMessageID = %q, want m-new", cursor.LastMessageID)
	}
	if cursor.LastHistoryID != 9 {
		t.Errorf("LastHistoryID = %d, want 9", cursor.LastHistoryID)
	}
}

func TestGmailWatermark_NeverRegresses(t *testing.T) {
	stored := &domain.IngestCursor{
		UserID:         "u1",
		Provider:       domain.ProviderGmail,
		LastInternalMs: 5_000,
		LastMessageID:  "m-newest",
	}

	w := newGmailWatermark(stored)
	w.observe(&gmail.Message{Id: "m-stale", InternalDate: 3_000})
	w.observe(&gmail.Message{Id: "m-equal", InternalDate: 5_000})

	if cursor := w.cursor("u1"); cursor != nil {
		t.Errorf("cursor = %+v, want nil when nothing newer than the watermark was seen", cursor)
	}
}

func TestGmailWatermark_FirstRun(t *testing.T) {
	w := newGmailWatermark(nil)

	if cursor := w.cursor("u1"); cursor != nil {
		t.Errorf("cursor = %+v, want nil on an empty first run", cursor)
	}

	w.observe(&gmail.Message{Id: "m1", InternalDate: 42})
	cursor := w.cursor("u1")
	if cursor == nil || cursor.LastInternalMs != 42 || cursor.LastMessageID != "m1" {
		t.Errorf("cursor = %+v, want watermark at first observed message", cursor)
	}
}
