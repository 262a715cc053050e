package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// List is a named collection of freeform items.
type List struct {
	ID   int64
	Name string
}

// ListItem is one entry in a list.
type ListItem struct {
	ID   int64
	Body string
}

// CreateList creates a list for the user. Returns false if the name exists.
func (s *Store) CreateList(address, name string) (bool, error) {
	res, err := s.db.Exec(`INSERT OR IGNORE INTO lists (address, name) VALUES (?, ?)`,
		address, name)
	if err != nil {
		return false, fmt.Errorf("create list: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// GetListByName finds a user's list by name (case-insensitive).
func (s *Store) GetListByName(address, name string) (*List, error) {
	l := &List{}
	err := s.db.QueryRow(`SELECT id, name FROM lists WHERE address = ? AND name = ? COLLATE NOCASE`,
		address, name).Scan(&l.ID, &l.Name)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	return l, nil
}

// Lists returns the user's lists in creation order.
func (s *Store) Lists(address string) ([]*List, error) {
	rows, err := s.db.Query(`SELECT id, name FROM lists WHERE address = ? ORDER BY id`, address)
	if err != nil {
		return nil, fmt.Errorf("lists: %w", err)
	}
	defer rows.Close()
	var out []*List
	for rows.Next() {
		l := &List{}
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// AddListItem appends an item to a list.
func (s *Store) AddListItem(listID int64, body string) error {
	_, err := s.db.Exec(`INSERT INTO list_items (list_id, body) VALUES (?, ?)`, listID, body)
	if err != nil {
		return fmt.Errorf("add list item: %w", err)
	}
	return nil
}

// ListItems returns a list's items in insertion order.
func (s *Store) ListItems(listID int64) ([]*ListItem, error) {
	rows, err := s.db.Query(`SELECT id, body FROM list_items WHERE list_id = ? ORDER BY id`, listID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	var out []*ListItem
	for rows.Next() {
		it := &ListItem{}
		if err := rows.Scan(&it.ID, &it.Body); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// DeleteListItem removes one item by id.
func (s *Store) DeleteListItem(itemID int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM list_items WHERE id = ?`, itemID)
	if err != nil {
		return false, fmt.Errorf("delete list item: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// DeleteList removes a list and, via cascade, its items.
func (s *Store) DeleteList(address string, listID int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM lists WHERE id = ? AND address = ?`, listID, address)
	if err != nil {
		return false, fmt.Errorf("delete list: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ---------------------------------------------------------------------------
// Memories
// ---------------------------------------------------------------------------

// Memory is a freeform fact the user asked the bot to keep.
type Memory struct {
	ID   string
	Body string
}

// SaveMemory stores a freeform memory for the user.
func (s *Store) SaveMemory(address, body string) (*Memory, error) {
	m := &Memory{ID: uuid.NewString(), Body: body}
	_, err := s.db.Exec(`INSERT INTO memories (id, address, body) VALUES (?, ?, ?)`,
		m.ID, address, body)
	if err != nil {
		return nil, fmt.Errorf("save memory: %w", err)
	}
	return m, nil
}

// SearchMemories returns the user's memories containing the query, oldest
// first. An empty query returns everything.
func (s *Store) SearchMemories(address, query string) ([]*Memory, error) {
	rows, err := s.db.Query(`SELECT id, body FROM memories
		WHERE address = ? AND body LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY created_at`, address, query)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()
	var out []*Memory
	for rows.Next() {
		m := &Memory{}
		if err := rows.Scan(&m.ID, &m.Body); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMemory removes a memory by id.
func (s *Store) DeleteMemory(address, id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM memories WHERE id = ? AND address = ?`, id, address)
	if err != nil {
		return false, fmt.Errorf("delete memory: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}
