package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/magabrotheeeer/memorysphere/internal/models"
)

// CreateMemory сохраняет запись и возвращает её идентификатор.
func (s *Storage) CreateMemory(ctx context.Context, m models.Memory) (string, error) {
	const op = "storage.CreateMemory"
	if err := ctxDone(ctx, op); err != nil {
		return "", err
	}

	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO memories (account_id, title, content, tags)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`, m.AccountID, m.Title, m.Content, tags).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ListMemories возвращает записи пользователя, новые первыми.
func (s *Storage) ListMemories(ctx context.Context, accountID string, limit, offset int) ([]*models.Memory, error) {
	const op = "storage.ListMemories"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, account_id, title, content, tags, created_at
			  FROM memories
			  WHERE account_id = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	typeMap := pgtype.NewMap()
	var result []*models.Memory
	for rows.Next() {
		m := &models.Memory{}
		if err := rows.Scan(&m.ID, &m.AccountID, &m.Title, &m.Content,
			typeMap.SQLScanner(&m.Tags), &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CreateTask сохраняет задачу и возвращает её идентификатор.
func (s *Storage) CreateTask(ctx context.Context, t models.Task) (string, error) {
	const op = "storage.CreateTask"
	if err := ctxDone(ctx, op); err != nil {
		return "", err
	}

	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO tasks (account_id, title, description, priority, completed, due_date)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`, t.AccountID, t.Title, t.Description, string(t.Priority), t.Completed, t.DueDate).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ListTasks возвращает задачи пользователя, новые первыми.
func (s *Storage) ListTasks(ctx context.Context, accountID string, limit, offset int) ([]*models.Task, error) {
	const op = "storage.ListTasks"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, account_id, title, description, priority, completed, due_date, created_at
			  FROM tasks
			  WHERE account_id = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Task
	for rows.Next() {
		t := &models.Task{}
		var priority string
		var due sql.NullTime
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Title, &t.Description, &priority,
			&t.Completed, &due, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		t.Priority = models.Priority(priority)
		t.DueDate = nullTimePtr(due)
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
