package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/nag/internal/model"
)

const choreCols = "id, name, description, schedule_kind, cron_expression, interval_days, interval_hour, interval_minute, created_at, updated_at"

// choreColsC is choreCols qualified with the "c" alias, for queries that
// join tables sharing column names with chores.
const choreColsC = "c.id, c.name, c.description, c.schedule_kind, c.cron_expression, c.interval_days, c.interval_hour, c.interval_minute, c.created_at, c.updated_at"

type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

func scanChore(scanner interface {
	Scan(dest ...any) error
}) (*model.Chore, error) {
	var c model.Chore
	var id string
	var cronExpr sql.NullString
	var intervalDays, intervalHour, intervalMinute sql.NullInt64
	var createdAt, updatedAt string

	if err := scanner.Scan(&id, &c.Name, &c.Description, &c.Schedule.Kind,
		&cronExpr, &intervalDays, &intervalHour, &intervalMinute,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse chore id: %w", err)
	}
	c.ID = parsedID

	if cronExpr.Valid {
		c.Schedule.CronExpression = cronExpr.String
	}
	if intervalDays.Valid {
		c.Schedule.IntervalDays = int(intervalDays.Int64)
	}
	if intervalHour.Valid {
		h := int(intervalHour.Int64)
		c.Schedule.IntervalHour = &h
	}
	if intervalMinute.Valid {
		m := int(intervalMinute.Int64)
		c.Schedule.IntervalMinute = &m
	}

	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &c, nil
}

func (s *ChoreStore) Create(c *model.Chore) error {
	_, err := s.db.Exec(
		`INSERT INTO chores (`+choreCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.Name, c.Description, string(c.Schedule.Kind),
		nullableString(c.Schedule.CronExpression), nullableIntervalDays(c.Schedule),
		nullableIntPtr(c.Schedule.IntervalHour), nullableIntPtr(c.Schedule.IntervalMinute),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert chore: %w", err)
	}
	return nil
}

func (s *ChoreStore) Get(id uuid.UUID) (*model.Chore, error) {
	row := s.db.QueryRow(`SELECT `+choreCols+` FROM chores WHERE id = ?`, id.String())
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

// ListScheduled returns every chore whose schedule is not ScheduleOnce, in
// deterministic (name, id) order. Used by the materializer (C4), which
// never needs to consider once-in-a-while chores.
func (s *ChoreStore) ListScheduled() ([]*model.Chore, error) {
	rows, err := s.db.Query(`SELECT ` + choreCols + ` FROM chores WHERE schedule_kind != 'once' ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list scheduled chores: %w", err)
	}
	defer rows.Close()
	return scanChores(rows)
}

// ListAll returns every chore, optionally filtered to those carrying
// tagName, unpaginated. Used by the due view (C3), which always projects
// the full set.
func (s *ChoreStore) ListAll(tagName string) ([]*model.Chore, error) {
	var rows *sql.Rows
	var err error
	if tagName == "" {
		rows, err = s.db.Query(`SELECT ` + choreCols + ` FROM chores ORDER BY name, id`)
	} else {
		rows, err = s.db.Query(`
			SELECT `+choreColsC+`
			FROM chores c
			JOIN chore_tags ct ON ct.chore_id = c.id
			JOIN tags t ON t.id = ct.tag_id
			WHERE t.name = ?
			ORDER BY c.name, c.id`, tagName)
	}
	if err != nil {
		return nil, fmt.Errorf("list all chores: %w", err)
	}
	defer rows.Close()
	return scanChores(rows)
}

// List returns chores, optionally filtered to those carrying tagName,
// paginated by limit/offset in deterministic (name, id) order. Used by the
// REST chores-list endpoint.
func (s *ChoreStore) List(tagName string, limit, offset int) ([]*model.Chore, error) {
	var rows *sql.Rows
	var err error
	if tagName == "" {
		rows, err = s.db.Query(`SELECT `+choreCols+` FROM chores ORDER BY name, id LIMIT ? OFFSET ?`, limit, offset)
	} else {
		rows, err = s.db.Query(`
			SELECT `+choreColsC+`
			FROM chores c
			JOIN chore_tags ct ON ct.chore_id = c.id
			JOIN tags t ON t.id = ct.tag_id
			WHERE t.name = ?
			ORDER BY c.name, c.id
			LIMIT ? OFFSET ?`, tagName, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()
	return scanChores(rows)
}

func scanChores(rows *sql.Rows) ([]*model.Chore, error) {
	var out []*model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chores: %w", err)
	}
	return out, nil
}

func (s *ChoreStore) Update(c *model.Chore) error {
	res, err := s.db.Exec(
		`UPDATE chores SET name = ?, description = ?, schedule_kind = ?, cron_expression = ?,
		 interval_days = ?, interval_hour = ?, interval_minute = ?, updated_at = ?
		 WHERE id = ?`,
		c.Name, c.Description, string(c.Schedule.Kind),
		nullableString(c.Schedule.CronExpression), nullableIntervalDays(c.Schedule),
		nullableIntPtr(c.Schedule.IntervalHour), nullableIntPtr(c.Schedule.IntervalMinute),
		formatTime(c.UpdatedAt), c.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update chore: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update chore rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete cascades to completions, notification_events, notification_deliveries,
// and chore_tags via foreign keys.
func (s *ChoreStore) Delete(id uuid.UUID) error {
	_, err := s.db.Exec(`DELETE FROM chores WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	return nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableIntervalDays(s model.Schedule) sql.NullInt64 {
	if s.Kind != model.ScheduleInterval {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(s.IntervalDays), Valid: true}
}

func nullableIntPtr(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
