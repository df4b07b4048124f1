// Diyable - сайт каталога DIY-проектов: проекты с изображениями,
// комментарии и эмодзи-реакции, сессии и регистрация пользователей.
// Данные хранятся в SQLite, схема обновляется автоматически при старте.
package main

import (
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/thekester/diyable/internal/config"
	"github.com/thekester/diyable/internal/database"
	"github.com/thekester/diyable/internal/router"
	"github.com/thekester/diyable/internal/services"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load()

	// Секрет сессий: из окружения или одноразовый на время процесса.
	// Без постоянного секрета все сессии умирают при перезапуске.
	if cfg.SessionSecret == "" {
		secret, err := services.GenerateSecureToken(32)
		if err != nil {
			logrus.WithError(err).Fatal("Не удалось сгенерировать секрет сессий")
		}
		cfg.SessionSecret = secret
		logrus.Warn("SESSION_SECRET не задан: используется одноразовый секрет, сессии не переживут перезапуск")
	}

	checkOrCreateDir(filepath.Dir(cfg.DBPath))
	checkOrCreateDir(cfg.UploadPath)

	store, err := database.Open(cfg.DBPath)
	if err != nil {
		logrus.WithError(err).Fatal("Не удалось открыть базу данных")
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		logrus.WithError(err).Fatal("Миграция схемы не удалась")
	}

	seed(store, cfg)

	gin.SetMode(gin.ReleaseMode)
	r := router.New(store, cfg)

	logrus.WithField("port", cfg.Port).Info("Сервер запущен")
	if err := r.Run(":" + cfg.Port); err != nil {
		logrus.WithError(err).Fatal("Сервер остановлен с ошибкой")
	}
}

// seed создает администратора (если настроен) и стартовый каталог
// проектов. Ошибки посева не фатальны: сервер полезен и без них.
func seed(store *database.Store, cfg config.Config) {
	ownerID := int64(1)
	if cfg.HasAdmin() {
		id, err := store.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword, cfg.AdminEmail)
		if err != nil {
			logrus.WithError(err).Error("Не удалось создать администратора")
		} else {
			ownerID = id
		}
	} else {
		logrus.Warn("ADMIN_USERNAME/ADMIN_PASSWORD не заданы: администратор не создан")
	}

	if err := store.SeedProjects(ownerID); err != nil {
		logrus.WithError(err).Error("Не удалось заполнить каталог проектов")
	}
}

// checkOrCreateDir создает каталог, если его еще нет.
func checkOrCreateDir(dir string) {
	if dir == "" || dir == "." {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logrus.WithError(err).WithField("dir", dir).Fatal("Не удалось создать каталог")
	}
}
