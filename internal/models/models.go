package models

// User представляет пользователя в системе.
// Поля структуры соответствуют столбцам в таблице 'users' базы данных.
// `json:"-"` означает, что поле будет проигнорировано при JSON-маршалинге.
type User struct {
	ID       int64  `json:"id"`       // Уникальный идентификатор пользователя (Primary Key)
	Username string `json:"username"` // Имя пользователя (UNIQUE)
	Email    string `json:"email"`    // Электронная почта (UNIQUE)
	Password string `json:"-"`        // Хеш пароля (НЕ ДОЛЖЕН передаваться клиенту)
	Salt     string `json:"-"`        // Индивидуальная соль пользователя (НЕ ДОЛЖНА передаваться клиенту)
}

// Project представляет DIY-проект в каталоге.
// Дата хранится ISO-строкой и служит единственным ключом сортировки (новые сверху).
// Тройка (name, date, image) уникальна: повторная вставка с той же тройкой
// обновляет описание, категорию и владельца вместо создания дубликата.
type Project struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`        // ISO-строка даты создания
	Name        string `json:"name"`        // Название проекта
	Description string `json:"description"` // Свободное текстовое описание
	Category    string `json:"category"`    // Категория (свободный тег)
	Image       string `json:"image"`       // Относительный путь к изображению (может быть пустым)
	UserID      int64  `json:"userId"`      // ID пользователя-владельца (Foreign Key)
	Username    string `json:"username"`    // Имя владельца (JOIN с users, в БД не хранится)
}

// Comment представляет комментарий к проекту.
type Comment struct {
	ID        int64            `json:"id"`
	ProjectID int64            `json:"projectId"` // ID проекта (Foreign Key)
	UserID    int64            `json:"userId"`    // ID автора (Foreign Key)
	Comment   string           `json:"comment"`   // Текст комментария
	Date      string           `json:"date"`      // ISO-строка времени создания
	Username  string           `json:"username"`  // Имя автора (JOIN с users)
	Reactions map[string]int64 `json:"reactions"` // Счетчики реакций по эмодзи (агрегат, в БД не хранится)
	CanDelete bool             `json:"canDelete"` // Может ли текущий пользователь удалить комментарий
}

// Reaction представляет одну эмодзи-реакцию пользователя на комментарий.
// Тройка (comment_id, userId, emoji) уникальна: у пользователя не может быть
// больше одной реакции данного эмодзи на данный комментарий.
type Reaction struct {
	ID        int64  `json:"id"`
	CommentID int64  `json:"commentId"`
	UserID    int64  `json:"userId"`
	Emoji     string `json:"emoji"`
	Date      string `json:"date"`
}
