package config

import (
	"github.com/spf13/viper"
)

// Config собирает всю конфигурацию приложения из переменных окружения.
// Структура явно передается в роутер и хендлеры (dependency injection),
// глобального состояния конфигурации в приложении нет.
type Config struct {
	SessionSecret string // Секрет для подписи cookie сессий (SESSION_SECRET)
	AdminUsername string // Имя администратора (ADMIN_USERNAME)
	AdminPassword string // Пароль администратора, используется только при первичном создании (ADMIN_PASSWORD)
	AdminEmail    string // Email администратора (ADMIN_EMAIL)
	Port          string // Порт HTTP-сервера (PORT)
	DBPath        string // Путь к файлу базы данных SQLite (DB_PATH)
	UploadPath    string // Папка для загружаемых изображений (UPLOAD_PATH)
	TemplatesGlob string // Шаблон поиска HTML-шаблонов (TEMPLATES_GLOB)
	StaticPath    string // Папка со статикой (STATIC_PATH)
}

// Load читает конфигурацию из переменных окружения через viper.
// Для отсутствующих переменных используются значения по умолчанию,
// пригодные для локального запуска.
func Load() Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("ADMIN_USERNAME", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("PORT", "5010")
	v.SetDefault("DB_PATH", "bdd/diyable.db")
	v.SetDefault("UPLOAD_PATH", "web/uploads")
	v.SetDefault("TEMPLATES_GLOB", "web/templates/*.html")
	v.SetDefault("STATIC_PATH", "web/static")

	return Config{
		SessionSecret: v.GetString("SESSION_SECRET"),
		AdminUsername: v.GetString("ADMIN_USERNAME"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
		AdminEmail:    v.GetString("ADMIN_EMAIL"),
		Port:          v.GetString("PORT"),
		DBPath:        v.GetString("DB_PATH"),
		UploadPath:    v.GetString("UPLOAD_PATH"),
		TemplatesGlob: v.GetString("TEMPLATES_GLOB"),
		StaticPath:    v.GetString("STATIC_PATH"),
	}
}

// HasAdmin сообщает, заданы ли все данные администратора.
// Без них админ-аккаунт при запуске не создается (это не фатальная ошибка).
func (c Config) HasAdmin() bool {
	return c.AdminUsername != "" && c.AdminPassword != "" && c.AdminEmail != ""
}
