package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/thekester/diyable/internal/auth"
	"github.com/thekester/diyable/internal/models"
)

// CreateUser регистрирует нового пользователя: генерирует индивидуальную
// соль, хеширует пароль и сохраняет запись. Пароль в открытом виде никогда
// не попадает в базу данных.
// Нарушение уникальности имени или email возвращается как сентинел-ошибка.
func (s *Store) CreateUser(username, email, password string) (int64, error) {
	salt, err := auth.GenerateSalt()
	if err != nil {
		return 0, err
	}
	hash := auth.HashPassword(password, salt)

	// Подготовленный запрос с плейсхолдерами защищает от SQL-инъекций.
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции CreateUser: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO users (username, email, password, salt) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("ошибка подготовки запроса CreateUser: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(username, email, hash, salt)
	if err != nil {
		// Проверяем специфические ошибки SQLite для нарушения UNIQUE constraint.
		msg := err.Error()
		if strings.Contains(msg, "UNIQUE constraint failed") {
			if strings.Contains(msg, "users.email") {
				return 0, ErrDuplicateEmail
			}
			return 0, ErrDuplicateUsername
		}
		return 0, fmt.Errorf("ошибка выполнения запроса CreateUser: %w", err)
	}

	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ошибка получения ID нового пользователя: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("ошибка фиксации транзакции CreateUser: %w", err)
	}

	logrus.WithFields(logrus.Fields{"username": username, "id": lastID}).Info("Создан пользователь")
	return lastID, nil
}

// GetUserByUsername ищет пользователя по имени.
// Возвращает ErrNotFound, если пользователя нет.
func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, username, email, password, salt FROM users WHERE username = ?`, username))
}

// GetUserByID ищет пользователя по идентификатору.
func (s *Store) GetUserByID(id int64) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, username, email, password, salt FROM users WHERE id = ?`, id))
}

func (s *Store) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.Salt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
	}
	return user, nil
}

// UpdatePassword сохраняет новый пароль пользователя: генерируется свежая
// соль, старый хеш полностью замещается.
func (s *Store) UpdatePassword(userID int64, newPassword string) error {
	salt, err := auth.GenerateSalt()
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`UPDATE users SET password = ?, salt = ? WHERE id = ?`,
		auth.HashPassword(newPassword, salt), salt, userID)
	if err != nil {
		return fmt.Errorf("ошибка обновления пароля пользователя %d: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения rowsAffected в UpdatePassword: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	logrus.WithField("userID", userID).Info("Пароль пользователя обновлен")
	return nil
}
