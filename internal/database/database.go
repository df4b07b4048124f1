package database

import (
	// Стандартные библиотеки
	"database/sql" // Основной пакет для работы с SQL базами данных
	"errors"
	"fmt"  // Для форматирования строк и ошибок
	"time" // Для настройки времени жизни соединений

	"github.com/sirupsen/logrus"

	// Драйвер SQLite. Пустой импорт (_) означает, что мы импортируем пакет
	// только ради его побочных эффектов - регистрации драйвера "sqlite" в пакете database/sql.
	_ "modernc.org/sqlite"
)

// Ошибки-сентинелы уровня хранилища. Хендлеры преобразуют их в HTTP-статусы.
var (
	ErrNotFound          = errors.New("запись не найдена")
	ErrDuplicateUsername = errors.New("имя пользователя уже занято")
	ErrDuplicateEmail    = errors.New("email уже занят")
)

// Store инкапсулирует пул соединений с базой данных SQLite.
// Экземпляр создается один раз в main и явно передается в хендлеры
// (dependency injection вместо глобальной переменной).
type Store struct {
	db *sql.DB
}

// Open открывает соединение с базой данных SQLite по указанному пути,
// настраивает пул соединений и проверяет фактическую доступность БД.
// Миграции и наполнение начальными данными выполняются отдельно (Migrate, Seed).
func Open(dataSourceName string) (*Store, error) {
	// Формируем строку подключения (DSN) с дополнительными прагмами SQLite:
	// - journal_mode(WAL): режим журналирования, более производительный
	//   при одновременном чтении и записи, чем стандартный DELETE.
	// - busy_timeout(5000): таймаут (мс) ожидания снятия блокировки
	//   базы данных при конкурентном доступе.
	// - foreign_keys(1): принудительное соблюдение ограничений внешних ключей.
	// - synchronous(NORMAL): компромисс между скоростью и надежностью записи.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)", dataSourceName)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка при открытии %s: %w", dataSourceName, err)
	}

	// Для SQLite стандартная практика - одно активное соединение:
	// параллельная запись в один файл затруднена даже с WAL.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	// Ping проверяет фактическое соединение с базой данных.
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка при проверке соединения с %s: %w", dataSourceName, err)
	}

	logrus.WithField("path", dataSourceName).Info("Успешно подключились к базе данных")
	return &Store{db: db}, nil
}

// Close закрывает пул соединений с базой данных.
func (s *Store) Close() error {
	return s.db.Close()
}
