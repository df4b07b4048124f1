package database

import (
	"database/sql"
	"fmt"
)

// ToggleReaction переключает реакцию (commentID, userID, emoji):
// существующая строка удаляется, отсутствующая - вставляется. Источник
// истины - строка присутствия, никакого счетчика в схеме нет: итоговое
// количество реакций пересчитывается агрегатом в той же транзакции.
// Транзакция закрывает check-then-act: конкурирующий toggle того же
// пользователя упрется либо в блокировку базы, либо в UNIQUE-ограничение.
// Возвращает новое количество реакций этого эмодзи на комментарии и
// признак того, держит ли пользователь реакцию после переключения.
func (s *Store) ToggleReaction(commentID, userID int64, emoji, date string) (count int64, hasReacted bool, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, false, fmt.Errorf("ошибка начала транзакции ToggleReaction: %w", err)
	}
	defer tx.Rollback()

	// Комментарий должен существовать: иначе вставка нарушит внешний ключ,
	// а вызывающему нужен внятный ErrNotFound.
	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM comments WHERE id = ?`, commentID).Scan(&exists); err != nil {
		return 0, false, fmt.Errorf("ошибка проверки комментария %d: %w", commentID, err)
	}
	if exists == 0 {
		return 0, false, ErrNotFound
	}

	var reactionID int64
	err = tx.QueryRow(
		`SELECT id FROM comment_reactions WHERE comment_id = ? AND userId = ? AND emoji = ?`,
		commentID, userID, emoji).Scan(&reactionID)
	switch {
	case err == nil:
		// Реакция есть - выключаем.
		if _, err := tx.Exec(`DELETE FROM comment_reactions WHERE id = ?`, reactionID); err != nil {
			return 0, false, fmt.Errorf("ошибка удаления реакции %d: %w", reactionID, err)
		}
		hasReacted = false
	case err == sql.ErrNoRows:
		// Реакции нет - включаем.
		if _, err := tx.Exec(
			`INSERT INTO comment_reactions (comment_id, userId, emoji, date) VALUES (?, ?, ?, ?)`,
			commentID, userID, emoji, date); err != nil {
			return 0, false, fmt.Errorf("ошибка вставки реакции: %w", err)
		}
		hasReacted = true
	default:
		return 0, false, fmt.Errorf("ошибка проверки реакции: %w", err)
	}

	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM comment_reactions WHERE comment_id = ? AND emoji = ?`,
		commentID, emoji).Scan(&count); err != nil {
		return 0, false, fmt.Errorf("ошибка подсчета реакций: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("ошибка фиксации транзакции ToggleReaction: %w", err)
	}
	return count, hasReacted, nil
}
