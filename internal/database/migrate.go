package database

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// migration - один шаг эволюции схемы. Шаги применяются строго по порядку
// версий, каждый в собственной транзакции и ровно один раз: текущая версия
// схемы хранится в PRAGMA user_version.
type migration struct {
	version int
	name    string
	// disableFK: шаги, пересобирающие таблицы через rename/copy/drop, должны
	// выполняться с выключенными внешними ключами. PRAGMA foreign_keys
	// внутри транзакции не действует, поэтому флаг обрабатывается снаружи.
	disableFK bool
	apply     func(tx *sql.Tx) error
}

// migrations - упорядоченная история схемы. Шаги повторяют эволюционные
// стадии базы: сначала таблицы комментариев и реакций были привязаны к
// имени пользователя текстом, затем появились userId и ограничение
// уникальности проектов. Внутри шагов стоят проверки по метаданным
// (PRAGMA table_info / index_list): базы, созданные до нумерации версий,
// имеют user_version=0 при уже существующих таблицах, и каждый шаг обязан
// быть no-op, если целевая форма уже достигнута.
var migrations = []migration{
	{version: 1, name: "базовая схема", apply: migrateBaseSchema},
	{version: 2, name: "projects.userId", apply: migrateProjectsUserID},
	{version: 3, name: "projects UNIQUE(name,date,image)", disableFK: true, apply: migrateProjectsUnique},
	{version: 4, name: "comments/comment_reactions username -> userId", disableFK: true, apply: migrateCommentsUserID},
}

// Migrate приводит базу данных к актуальной форме схемы.
// Идемпотентна: повторный запуск на актуальной базе ничего не меняет.
// Любая ошибка здесь считается фатальной для запуска приложения.
func (s *Store) Migrate() error {
	var current int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("ошибка чтения версии схемы: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		if m.disableFK {
			if _, err := s.db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
				return fmt.Errorf("ошибка отключения внешних ключей перед миграцией %d: %w", m.version, err)
			}
		}

		err := s.applyMigration(m)

		if m.disableFK {
			// Ключи включаем обратно независимо от исхода миграции.
			if _, fkErr := s.db.Exec("PRAGMA foreign_keys = ON"); fkErr != nil && err == nil {
				err = fmt.Errorf("ошибка включения внешних ключей после миграции %d: %w", m.version, fkErr)
			}
		}

		if err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{"version": m.version, "name": m.name}).Info("Миграция применена")
		current = m.version
	}

	return nil
}

// applyMigration выполняет один шаг в транзакции и фиксирует новую версию
// схемы тем же коммитом, чтобы шаг не мог примениться дважды.
func (s *Store) applyMigration(m migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции миграции %d: %w", m.version, err)
	}
	defer tx.Rollback()

	if err := m.apply(tx); err != nil {
		return fmt.Errorf("ошибка миграции %d (%s): %w", m.version, m.name, err)
	}

	// PRAGMA не принимает плейсхолдеры, версия подставляется форматированием.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("ошибка записи версии схемы %d: %w", m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации миграции %d: %w", m.version, err)
	}
	return nil
}

// migrateBaseSchema создает таблицы в их исторически первой форме:
// projects еще без userId и без ограничения уникальности, comments и
// comment_reactions привязаны к имени пользователя текстом.
// IF NOT EXISTS делает шаг безопасным для баз, созданных до нумерации версий.
func migrateBaseSchema(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL,
			salt TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			category TEXT,
			image TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			projectId INTEGER NOT NULL,
			username TEXT NOT NULL,
			comment TEXT NOT NULL,
			date TEXT NOT NULL,
			FOREIGN KEY (projectId) REFERENCES projects(id)
		)`,
		`CREATE TABLE IF NOT EXISTS comment_reactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			comment_id INTEGER NOT NULL,
			username TEXT NOT NULL,
			emoji TEXT NOT NULL,
			date TEXT NOT NULL,
			FOREIGN KEY (comment_id) REFERENCES comments(id),
			UNIQUE (comment_id, username, emoji)
		)`,
	}
	for _, q := range stmts {
		if _, err := tx.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// migrateProjectsUserID добавляет владельца проектам. Существующие строки
// получают userId=1: по соглашению это административный аккаунт.
func migrateProjectsUserID(tx *sql.Tx) error {
	has, err := hasColumn(tx, "projects", "userId")
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = tx.Exec(`ALTER TABLE projects ADD COLUMN userId INTEGER NOT NULL DEFAULT 1`)
	return err
}

// migrateProjectsUnique пересобирает таблицу projects с ограничением
// UNIQUE(name, date, image): rename -> create -> копия без дубликатов
// (GROUP BY по ограничиваемым столбцам оставляет по одной строке) -> drop.
func migrateProjectsUnique(tx *sql.Tx) error {
	has, err := hasUniqueIndex(tx, "projects")
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	stmts := []string{
		`ALTER TABLE projects RENAME TO projects_old`,
		`CREATE TABLE projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			category TEXT,
			image TEXT,
			userId INTEGER NOT NULL,
			FOREIGN KEY (userId) REFERENCES users(id),
			UNIQUE (name, date, image)
		)`,
		`INSERT INTO projects (id, date, name, description, category, image, userId)
			SELECT id, date, name, description, category, image, userId
			FROM projects_old
			GROUP BY name, date, image`,
		`DROP TABLE projects_old`,
	}
	for _, q := range stmts {
		if _, err := tx.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// migrateCommentsUserID переводит comments и comment_reactions с текстового
// username на внешний ключ userId. Строки, чье имя пользователя больше не
// соответствует ни одному пользователю, отбрасываются с предупреждением.
func migrateCommentsUserID(tx *sql.Tx) error {
	if err := rekeyByUsername(tx, "comments",
		`CREATE TABLE comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			projectId INTEGER NOT NULL,
			userId INTEGER NOT NULL,
			comment TEXT NOT NULL,
			date TEXT NOT NULL,
			FOREIGN KEY (projectId) REFERENCES projects(id),
			FOREIGN KEY (userId) REFERENCES users(id)
		)`,
		`INSERT INTO comments (id, projectId, userId, comment, date)
			SELECT o.id, o.projectId, u.id, o.comment, o.date
			FROM comments_old o JOIN users u ON u.username = o.username`,
	); err != nil {
		return err
	}

	return rekeyByUsername(tx, "comment_reactions",
		`CREATE TABLE comment_reactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			comment_id INTEGER NOT NULL,
			userId INTEGER NOT NULL,
			emoji TEXT NOT NULL,
			date TEXT NOT NULL,
			FOREIGN KEY (comment_id) REFERENCES comments(id),
			FOREIGN KEY (userId) REFERENCES users(id),
			UNIQUE (comment_id, userId, emoji)
		)`,
		`INSERT INTO comment_reactions (id, comment_id, userId, emoji, date)
			SELECT o.id, o.comment_id, u.id, o.emoji, o.date
			FROM comment_reactions_old o JOIN users u ON u.username = o.username`,
	)
}

// rekeyByUsername выполняет общий танец rename/create/copy/drop для таблиц,
// мигрирующих с username на userId. copyQuery обязан читать из <table>_old
// через JOIN с users, тем самым отбрасывая неразрешимые имена.
func rekeyByUsername(tx *sql.Tx, table, createQuery, copyQuery string) error {
	has, err := hasColumn(tx, table, "userId")
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	var before int
	if err := tx.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&before); err != nil {
		return err
	}

	if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s RENAME TO %s_old", table, table)); err != nil {
		return err
	}
	if _, err := tx.Exec(createQuery); err != nil {
		return err
	}
	res, err := tx.Exec(copyQuery)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("DROP TABLE %s_old", table)); err != nil {
		return err
	}

	copied, _ := res.RowsAffected()
	if dropped := int64(before) - copied; dropped > 0 {
		logrus.WithFields(logrus.Fields{"table": table, "dropped": dropped}).
			Warn("Строки с неизвестным username не были перенесены при миграции")
	}
	return nil
}

// hasColumn проверяет наличие столбца в таблице по метаданным PRAGMA table_info.
func hasColumn(tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("ошибка чтения столбцов таблицы %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid, notnull, pk int
			name, ctype      string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// hasUniqueIndex проверяет по PRAGMA index_list, объявлен ли на таблице
// хотя бы один уникальный индекс (origin='u' - индекс от UNIQUE-ограничения).
func hasUniqueIndex(tx *sql.Tx, table string) (bool, error) {
	rows, err := tx.Query(fmt.Sprintf("PRAGMA index_list(%s)", table))
	if err != nil {
		return false, fmt.Errorf("ошибка чтения индексов таблицы %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq, unique, partial int
			name, origin         string
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return false, err
		}
		if unique == 1 || origin == "u" {
			return true, nil
		}
	}
	return false, rows.Err()
}
