package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/nag/internal/model"
)

const tagCols = "id, name, color"

type TagStore struct {
	db *sql.DB
}

func NewTagStore(db *sql.DB) *TagStore {
	return &TagStore{db: db}
}

func scanTag(scanner interface {
	Scan(dest ...any) error
}) (*model.Tag, error) {
	var t model.Tag
	var id string
	var color sql.NullString

	if err := scanner.Scan(&id, &t.Name, &color); err != nil {
		return nil, err
	}

	var err error
	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse tag id: %w", err)
	}
	if color.Valid {
		t.Color = &color.String
	}
	return &t, nil
}

func (s *TagStore) Create(t *model.Tag) error {
	var color any
	if t.Color != nil {
		color = *t.Color
	}
	_, err := s.db.Exec(`INSERT INTO tags (`+tagCols+`) VALUES (?, ?, ?)`, t.ID.String(), t.Name, color)
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

func (s *TagStore) List() ([]*model.Tag, error) {
	rows, err := s.db.Query(`SELECT ` + tagCols + ` FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []*model.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ForChore returns the tags attached to a chore, alphabetically.
func (s *TagStore) ForChore(choreID uuid.UUID) ([]*model.Tag, error) {
	rows, err := s.db.Query(`
		SELECT t.id, t.name, t.color
		FROM tags t
		JOIN chore_tags ct ON ct.tag_id = t.id
		WHERE ct.chore_id = ?
		ORDER BY t.name`, choreID.String())
	if err != nil {
		return nil, fmt.Errorf("list chore tags: %w", err)
	}
	defer rows.Close()

	var out []*model.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *TagStore) Update(t *model.Tag) error {
	var color any
	if t.Color != nil {
		color = *t.Color
	}
	_, err := s.db.Exec(`UPDATE tags SET name = ?, color = ? WHERE id = ?`, t.Name, color, t.ID.String())
	if err != nil {
		return fmt.Errorf("update tag: %w", err)
	}
	return nil
}

func (s *TagStore) Delete(id uuid.UUID) error {
	_, err := s.db.Exec(`DELETE FROM tags WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}

func (s *TagStore) Attach(choreID, tagID uuid.UUID) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO chore_tags (chore_id, tag_id) VALUES (?, ?)`, choreID.String(), tagID.String())
	if err != nil {
		return fmt.Errorf("attach tag: %w", err)
	}
	return nil
}

func (s *TagStore) Detach(choreID, tagID uuid.UUID) error {
	_, err := s.db.Exec(`DELETE FROM chore_tags WHERE chore_id = ? AND tag_id = ?`, choreID.String(), tagID.String())
	if err != nil {
		return fmt.Errorf("detach tag: %w", err)
	}
	return nil
}
