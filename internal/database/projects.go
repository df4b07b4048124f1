package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/thekester/diyable/internal/models"
)

// scanProjects читает строки запроса projects JOIN users в срез моделей.
// Поля description, category и image допускают NULL.
func scanProjects(rows *sql.Rows) ([]models.Project, error) {
	var projects []models.Project
	for rows.Next() {
		var (
			p                     models.Project
			desc, category, image sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Date, &p.Name, &desc, &category, &image, &p.UserID, &p.Username); err != nil {
			return nil, fmt.Errorf("ошибка сканирования проекта: %w", err)
		}
		p.Description = desc.String
		p.Category = category.String
		p.Image = image.String
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ListProjects возвращает проекты с именем владельца, отсортированные по
// дате по убыванию (новые сверху). Непустой category сужает выборку.
func (s *Store) ListProjects(category string) ([]models.Project, error) {
	query := `
		SELECT projects.id, projects.date, projects.name, projects.description,
		       projects.category, projects.image, projects.userId, users.username
		FROM projects
		JOIN users ON projects.userId = users.id`
	args := []any{}
	if category != "" {
		query += ` WHERE projects.category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY date DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки проектов: %w", err)
	}
	defer rows.Close()
	return scanProjects(rows)
}

// RecentProjects возвращает limit самых свежих проектов для главной страницы.
func (s *Store) RecentProjects(limit int) ([]models.Project, error) {
	rows, err := s.db.Query(`
		SELECT projects.id, projects.date, projects.name, projects.description,
		       projects.category, projects.image, projects.userId, users.username
		FROM projects
		JOIN users ON projects.userId = users.id
		ORDER BY date DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки свежих проектов: %w", err)
	}
	defer rows.Close()
	return scanProjects(rows)
}

// ListCategories возвращает различные категории каталога для фасетов фильтра.
// Категории "autre"/"other" исключаются из списка (в интерфейсе они
// показываются отдельной кнопкой "все остальное").
func (s *Store) ListCategories() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT category FROM projects`)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки категорий: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var category sql.NullString
		if err := rows.Scan(&category); err != nil {
			return nil, err
		}
		c := category.String
		switch strings.ToLower(c) {
		case "", "autre", "other":
			continue
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetProject возвращает проект с именем владельца или ErrNotFound.
func (s *Store) GetProject(id int64) (*models.Project, error) {
	var (
		p                     models.Project
		desc, category, image sql.NullString
	)
	err := s.db.QueryRow(`
		SELECT projects.id, projects.date, projects.name, projects.description,
		       projects.category, projects.image, projects.userId, users.username
		FROM projects
		JOIN users ON projects.userId = users.id
		WHERE projects.id = ?`, id).
		Scan(&p.ID, &p.Date, &p.Name, &desc, &category, &image, &p.UserID, &p.Username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка выборки проекта %d: %w", id, err)
	}
	p.Description = desc.String
	p.Category = category.String
	p.Image = image.String
	return &p, nil
}

// CreateProject вставляет новый проект от имени userID.
// Тройка (name, date, image) уникальна: при конфликте строка не дублируется,
// а обновляются описание, категория и владелец (upsert).
func (s *Store) CreateProject(date, name, description, category, image string, userID int64) (int64, error) {
	// RETURNING вместо LastInsertId: на ветке DO UPDATE вставки не происходит
	// и last_insert_rowid() указывал бы на постороннюю строку.
	var id int64
	err := s.db.QueryRow(`
		INSERT INTO projects (date, name, description, category, image, userId)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, date, image) DO UPDATE SET
			description = excluded.description,
			category = excluded.category,
			userId = excluded.userId
		RETURNING id`,
		date, name, description, category, nullable(image), userID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ошибка вставки проекта: %w", err)
	}
	return id, nil
}

// UpdateProject обновляет редактируемые поля проекта. Дата и владелец при
// редактировании не меняются.
func (s *Store) UpdateProject(id int64, name, description, category, image string) error {
	res, err := s.db.Exec(`
		UPDATE projects SET name = ?, description = ?, category = ?, image = ?
		WHERE id = ?`,
		name, description, category, nullable(image), id)
	if err != nil {
		return fmt.Errorf("ошибка обновления проекта %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения rowsAffected в UpdateProject: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProject удаляет проект вместе с зависимыми данными одной
// транзакцией: сначала реакции на комментарии проекта, затем сами
// комментарии, затем проект. Частичный сбой не оставляет осиротевших строк.
func (s *Store) DeleteProject(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции DeleteProject: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM comment_reactions WHERE comment_id IN (SELECT id FROM comments WHERE projectId = ?)`, id); err != nil {
		return fmt.Errorf("ошибка удаления реакций проекта %d: %w", id, err)
	}
	if _, err := tx.Exec(`DELETE FROM comments WHERE projectId = ?`, id); err != nil {
		return fmt.Errorf("ошибка удаления комментариев проекта %d: %w", id, err)
	}
	res, err := tx.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления проекта %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения rowsAffected в DeleteProject: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции DeleteProject: %w", err)
	}
	logrus.WithField("projectID", id).Info("Проект удален вместе с комментариями и реакциями")
	return nil
}

// nullable превращает пустую строку в NULL для записи в БД.
// Важно для UNIQUE(name, date, image): SQLite считает NULL-значения
// попарно различными, поэтому проекты без изображения под это
// ограничение не попадают и не участвуют в upsert.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
