package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetOrCreateUser(t *testing.T) {
	s := openTestStore(t)

	u, err := s.GetOrCreateUser("whatsapp", "15551234")
	if err != nil {
		t.Fatal(err)
	}
	if u.Address != "15551234" || u.Channel != "whatsapp" {
		t.Errorf("unexpected user %+v", u)
	}

	// Second contact on a different channel updates the channel, nothing else.
	if err := s.UpdateUserProfile(u.Address, "Sam", "America/New_York", "free", true); err != nil {
		t.Fatal(err)
	}
	u2, err := s.GetOrCreateUser("slack", "15551234")
	if err != nil {
		t.Fatal(err)
	}
	if u2.Channel != "slack" {
		t.Errorf("channel = %q, want slack", u2.Channel)
	}
	if u2.FirstName != "Sam" || !u2.Onboarded {
		t.Errorf("profile lost on re-contact: %+v", u2)
	}
}

func TestUndoAndDeliveryRefs(t *testing.T) {
	s := openTestStore(t)
	u, err := s.GetOrCreateUser("whatsapp", "addr")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.SetUndoRef(u.Address, "rem-1"); err != nil {
		t.Fatal(err)
	}
	at := time.Now().UTC().Truncate(time.Second)
	if err := s.SetLastDelivered(u.Address, "rem-2", at); err != nil {
		t.Fatal(err)
	}

	u, err = s.GetUser(u.Address)
	if err != nil {
		t.Fatal(err)
	}
	if u.LastCreatedID != "rem-1" {
		t.Errorf("undo ref = %q, want rem-1", u.LastCreatedID)
	}
	if u.LastDeliveredID != "rem-2" || !u.LastDeliveredAt.Equal(at) {
		t.Errorf("delivery ref = %q at %v", u.LastDeliveredID, u.LastDeliveredAt)
	}

	if err := s.ClearUndoRef(u.Address); err != nil {
		t.Fatal(err)
	}
	u, _ = s.GetUser(u.Address)
	if u.LastCreatedID != "" {
		t.Errorf("undo ref not cleared: %q", u.LastCreatedID)
	}
}

func TestPendingStateReplace(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetOrCreateUser("whatsapp", "addr"); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetPendingState("addr"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	first := &PendingStateRecord{
		Address:   "addr",
		Kind:      "clarify_ampm",
		Payload:   []byte(`{"ambiguous_hour":4}`),
		Prompt:    "AM or PM?",
		CreatedAt: now,
		ExpiresAt: now.Add(30 * time.Minute),
	}
	if err := s.SetPendingState(first); err != nil {
		t.Fatal(err)
	}

	// Replacing must fully overwrite, leaving no trace of the old payload.
	second := &PendingStateRecord{
		Address:   "addr",
		Kind:      "confirm_delete",
		Payload:   []byte(`{"target":{"kind":"reminder","id":"x","label":"y"}}`),
		Prompt:    "Delete it?",
		CreatedAt: now.Add(time.Minute),
		ExpiresAt: now.Add(31 * time.Minute),
	}
	if err := s.SetPendingState(second); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetPendingState("addr")
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != "confirm_delete" || got.Prompt != "Delete it?" {
		t.Errorf("got %+v, want the replacement", got)
	}
	if string(got.Payload) != string(second.Payload) {
		t.Errorf("payload = %s, want %s", got.Payload, second.Payload)
	}

	if err := s.ClearPendingState("addr"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetPendingState("addr"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
	// Clearing again is a no-op, not an error.
	if err := s.ClearPendingState("addr"); err != nil {
		t.Fatal(err)
	}
}

func TestListsAndItems(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetOrCreateUser("whatsapp", "addr"); err != nil {
		t.Fatal(err)
	}

	created, err := s.CreateList("addr", "Groceries")
	if err != nil || !created {
		t.Fatalf("create list: %v created=%v", err, created)
	}
	created, err = s.CreateList("addr", "Groceries")
	if err != nil || created {
		t.Fatalf("duplicate create: %v created=%v", err, created)
	}

	list, err := s.GetListByName("addr", "groceries")
	if err != nil {
		t.Fatalf("case-insensitive lookup: %v", err)
	}
	if err := s.AddListItem(list.ID, "milk"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddListItem(list.ID, "eggs"); err != nil {
		t.Fatal(err)
	}

	items, err := s.ListItems(list.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].Body != "milk" {
		t.Errorf("items = %+v", items)
	}

	ok, err := s.DeleteListItem(items[0].ID)
	if err != nil || !ok {
		t.Fatalf("delete item: %v ok=%v", err, ok)
	}

	// Deleting the list cascades to the remaining items.
	ok, err = s.DeleteList("addr", list.ID)
	if err != nil || !ok {
		t.Fatalf("delete list: %v ok=%v", err, ok)
	}
	if _, err := s.GetListByName("addr", "Groceries"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemories(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetOrCreateUser("whatsapp", "addr"); err != nil {
		t.Fatal(err)
	}

	if _, err := s.SaveMemory("addr", "the wifi password is hunter2"); err != nil {
		t.Fatal(err)
	}
	m, err := s.SaveMemory("addr", "parking spot 3B")
	if err != nil {
		t.Fatal(err)
	}

	found, err := s.SearchMemories("addr", "wifi")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Body != "the wifi password is hunter2" {
		t.Errorf("search = %+v", found)
	}

	all, err := s.SearchMemories("addr", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("all memories = %d, want 2", len(all))
	}

	ok, err := s.DeleteMemory("addr", m.ID)
	if err != nil || !ok {
		t.Fatalf("delete memory: %v ok=%v", err, ok)
	}
}
