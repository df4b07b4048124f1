package database

import (
	"database/sql"
	"fmt"

	"github.com/thekester/diyable/internal/models"
)

// CreateComment сохраняет комментарий к проекту от имени userID.
func (s *Store) CreateComment(projectID, userID int64, text, date string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO comments (projectId, userId, comment, date) VALUES (?, ?, ?, ?)`,
		projectID, userID, text, date)
	if err != nil {
		return 0, fmt.Errorf("ошибка вставки комментария: %w", err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ошибка получения ID нового комментария: %w", err)
	}
	return lastID, nil
}

// GetComment возвращает комментарий с именем автора или ErrNotFound.
func (s *Store) GetComment(id int64) (*models.Comment, error) {
	c := &models.Comment{Reactions: map[string]int64{}}
	err := s.db.QueryRow(`
		SELECT comments.id, comments.projectId, comments.userId, comments.comment,
		       comments.date, users.username
		FROM comments
		JOIN users ON comments.userId = users.id
		WHERE comments.id = ?`, id).
		Scan(&c.ID, &c.ProjectID, &c.UserID, &c.Comment, &c.Date, &c.Username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка выборки комментария %d: %w", id, err)
	}
	return c, nil
}

// ListComments возвращает комментарии проекта с именами авторов (новые
// сверху) и счетчиками реакций по каждому эмодзи. Счетчики всегда
// агрегируются запросом, денормализованных счетчиков в схеме нет.
func (s *Store) ListComments(projectID int64) ([]models.Comment, error) {
	rows, err := s.db.Query(`
		SELECT comments.id, comments.projectId, comments.userId, comments.comment,
		       comments.date, users.username
		FROM comments
		JOIN users ON comments.userId = users.id
		WHERE comments.projectId = ?
		ORDER BY comments.date DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки комментариев проекта %d: %w", projectID, err)
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		c := models.Comment{Reactions: map[string]int64{}}
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.UserID, &c.Comment, &c.Date, &c.Username); err != nil {
			return nil, fmt.Errorf("ошибка сканирования комментария: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return comments, nil
	}

	// Привязываем агрегированные реакции к комментариям.
	reactionRows, err := s.db.Query(`
		SELECT comment_id, emoji, COUNT(*) AS count
		FROM comment_reactions
		WHERE comment_id IN (SELECT id FROM comments WHERE projectId = ?)
		GROUP BY comment_id, emoji`, projectID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки реакций проекта %d: %w", projectID, err)
	}
	defer reactionRows.Close()

	counts := map[int64]map[string]int64{}
	for reactionRows.Next() {
		var (
			commentID, count int64
			emoji            string
		)
		if err := reactionRows.Scan(&commentID, &emoji, &count); err != nil {
			return nil, fmt.Errorf("ошибка сканирования реакции: %w", err)
		}
		if counts[commentID] == nil {
			counts[commentID] = map[string]int64{}
		}
		counts[commentID][emoji] = count
	}
	if err := reactionRows.Err(); err != nil {
		return nil, err
	}

	for i := range comments {
		if m, ok := counts[comments[i].ID]; ok {
			comments[i].Reactions = m
		}
	}
	return comments, nil
}

// UserReactions возвращает для каждого комментария проекта набор эмодзи,
// которыми отреагировал данный пользователь (для подсветки в интерфейсе).
func (s *Store) UserReactions(projectID, userID int64) (map[int64][]string, error) {
	rows, err := s.db.Query(`
		SELECT comment_id, emoji
		FROM comment_reactions
		WHERE userId = ?
		  AND comment_id IN (SELECT id FROM comments WHERE projectId = ?)`,
		userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки реакций пользователя %d: %w", userID, err)
	}
	defer rows.Close()

	result := map[int64][]string{}
	for rows.Next() {
		var (
			commentID int64
			emoji     string
		)
		if err := rows.Scan(&commentID, &emoji); err != nil {
			return nil, err
		}
		result[commentID] = append(result[commentID], emoji)
	}
	return result, rows.Err()
}

// DeleteComment удаляет комментарий и его реакции одной транзакцией.
func (s *Store) DeleteComment(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции DeleteComment: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM comment_reactions WHERE comment_id = ?`, id); err != nil {
		return fmt.Errorf("ошибка удаления реакций комментария %d: %w", id, err)
	}
	res, err := tx.Exec(`DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления комментария %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения rowsAffected в DeleteComment: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}
