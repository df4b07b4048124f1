package middleware

import (
	// Стандартные библиотеки
	"fmt"
	"net/http"
	"strings"
	"time"

	// Сторонние библиотеки
	"github.com/gin-contrib/sessions" // Для работы с сессиями
	"github.com/gin-gonic/gin"        // Основной фреймворк
	"github.com/sirupsen/logrus"
)

// Ключи данных сессии и контекста Gin.
const (
	SessionUserID   = "userID"
	SessionUsername = "username"
)

// currentUser извлекает аутентифицированного пользователя из сессии.
// Возвращает ok=false, если сессия пуста или повреждена.
func currentUser(c *gin.Context) (userID int64, username string, ok bool) {
	session := sessions.Default(c)

	userIDRaw := session.Get(SessionUserID)
	if userIDRaw == nil {
		return 0, "", false
	}

	// При успешном логине userID сохранялся как int64. Другой тип означает
	// поврежденные данные сессии: такую сессию надо очистить.
	userID, ok = userIDRaw.(int64)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"type": fmt.Sprintf("%T", userIDRaw),
			"ip":   c.ClientIP(),
		}).Error("Некорректный тип userID в сессии, сессия будет очищена")
		session.Clear()
		session.Options(sessions.Options{MaxAge: -1})
		if err := session.Save(); err != nil {
			logrus.WithError(err).Error("Ошибка сохранения сессии при очистке")
		}
		return 0, "", false
	}

	username, _ = session.Get(SessionUsername).(string)
	return userID, username, true
}

// Identify кладет данные текущего пользователя (если он аутентифицирован)
// в контекст Gin, не требуя входа. Нужен публичным страницам, которые
// показывают имя пользователя и персонализируют ответ.
func Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, username, ok := currentUser(c); ok {
			c.Set(SessionUserID, userID)
			c.Set(SessionUsername, username)
		}
		c.Next()
	}
}

// AuthRequired проверяет аутентификацию для браузерных маршрутов.
// Неаутентифицированный пользователь перенаправляется на страницу входа.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, username, ok := currentUser(c)
		if !ok {
			logrus.WithFields(logrus.Fields{
				"path": c.Request.URL.Path,
				"ip":   c.ClientIP(),
			}).Info("Доступ запрещен: не аутентифицирован")
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		c.Set(SessionUserID, userID)
		c.Set(SessionUsername, username)
		c.Next()
	}
}

// AuthRequiredJSON - вариант для AJAX/API маршрутов (/comments, /react,
// мутации /projets): вместо редиректа возвращается 403 с JSON-телом.
func AuthRequiredJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, username, ok := currentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "Vous devez être connecté pour effectuer cette action.",
			})
			return
		}

		c.Set(SessionUserID, userID)
		c.Set(SessionUsername, username)
		c.Next()
	}
}

// CSRFError обрабатывает запросы с отсутствующим или неверным CSRF-токеном.
// API-маршруты получают 403 с JSON, браузерные - страницу ошибки
// безопасности с предложением перезагрузить страницу.
func CSRFError() gin.HandlerFunc {
	return func(c *gin.Context) {
		logrus.WithFields(logrus.Fields{
			"path": c.Request.URL.Path,
			"ip":   c.ClientIP(),
		}).Warn("Неверный CSRF-токен")

		message := "Votre session a expiré ou est invalide. Veuillez recharger la page et réessayer."

		path := c.Request.URL.Path
		isAPI := strings.HasPrefix(path, "/comments") ||
			strings.HasPrefix(path, "/react") ||
			(strings.HasPrefix(path, "/projets") && c.Request.Method != http.MethodGet)

		if isAPI {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": message,
			})
			return
		}

		c.HTML(http.StatusForbidden, "csrfError.html", gin.H{
			"title":     "Erreur de sécurité",
			"message":   message,
			"username":  "",
			"csrfToken": "",
		})
		c.Abort()
	}
}

// RequestLogger пишет одну строку structured-лога на каждый запрос:
// метод, путь, статус, длительность и IP клиента.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"ip":       c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("Запрос завершился ошибкой сервера")
			return
		}
		entry.Info("Запрос обработан")
	}
}
