package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/nag/internal/model"
)

const completionCols = "id, chore_id, completed_at, notes, created_at"

type CompletionStore struct {
	db *sql.DB
}

func NewCompletionStore(db *sql.DB) *CompletionStore {
	return &CompletionStore{db: db}
}

func scanCompletion(scanner interface {
	Scan(dest ...any) error
}) (*model.Completion, error) {
	var comp model.Completion
	var id, choreID string
	var notes sql.NullString
	var completedAt, createdAt string

	if err := scanner.Scan(&id, &choreID, &completedAt, &notes, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if comp.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse completion id: %w", err)
	}
	if comp.ChoreID, err = uuid.Parse(choreID); err != nil {
		return nil, fmt.Errorf("parse chore id: %w", err)
	}
	if notes.Valid {
		comp.Notes = &notes.String
	}
	if comp.CompletedAt, err = parseTime(completedAt); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}
	if comp.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &comp, nil
}

// Backdating is allowed: CompletedAt need not be monotonic across rows.
func (s *CompletionStore) Create(c *model.Completion) error {
	var notes any
	if c.Notes != nil {
		notes = *c.Notes
	}
	_, err := s.db.Exec(
		`INSERT INTO completions (`+completionCols+`) VALUES (?, ?, ?, ?, ?)`,
		c.ID.String(), c.ChoreID.String(), formatTime(c.CompletedAt), notes, formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	return nil
}

// Last returns the most recent completion for a chore, or nil if it has
// never been completed.
func (s *CompletionStore) Last(choreID uuid.UUID) (*model.Completion, error) {
	row := s.db.QueryRow(
		`SELECT `+completionCols+` FROM completions WHERE chore_id = ? ORDER BY completed_at DESC, id DESC LIMIT 1`,
		choreID.String(),
	)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last completion: %w", err)
	}
	return c, nil
}

func (s *CompletionStore) List(choreID uuid.UUID, limit, offset int) ([]*model.Completion, error) {
	rows, err := s.db.Query(
		`SELECT `+completionCols+` FROM completions WHERE chore_id = ? ORDER BY completed_at DESC, id DESC LIMIT ? OFFSET ?`,
		choreID.String(), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var out []*model.Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return out, nil
}

func (s *CompletionStore) Delete(id uuid.UUID) error {
	_, err := s.db.Exec(`DELETE FROM completions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}
	return nil
}
