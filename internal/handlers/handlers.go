package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	csrf "github.com/utrack/gin-csrf"

	"github.com/thekester/diyable/internal/config"
	"github.com/thekester/diyable/internal/database"
	"github.com/thekester/diyable/internal/middleware"
)

// Handler держит зависимости всех HTTP-обработчиков: хранилище и
// конфигурацию. Экземпляр собирается один раз при старте процесса и
// передается в роутер (никаких глобальных переменных).
type Handler struct {
	store *database.Store
	cfg   config.Config
}

// New создает Handler с данным хранилищем и конфигурацией.
func New(store *database.Store, cfg config.Config) *Handler {
	return &Handler{store: store, cfg: cfg}
}

// wantsJSON определяет, ждет ли клиент JSON-ответ (AJAX-запрос).
func wantsJSON(c *gin.Context) bool {
	return c.GetHeader("X-Requested-With") == "XMLHttpRequest" ||
		strings.Contains(c.GetHeader("Accept"), "json")
}

// currentUserID возвращает ID аутентифицированного пользователя из
// контекста (который заполнило auth-middleware).
func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(middleware.SessionUserID)
}

// currentUsername возвращает имя аутентифицированного пользователя или "".
func currentUsername(c *gin.Context) string {
	return c.GetString(middleware.SessionUsername)
}

// isAdmin сообщает, действует ли запрос от имени администратора.
// Администратор определяется сравнением имени с настроенным
// ADMIN_USERNAME; другой системы ролей нет.
func (h *Handler) isAdmin(c *gin.Context) bool {
	admin := h.cfg.AdminUsername
	return admin != "" && currentUsername(c) == admin
}

// canModify реализует единственное правило авторизации приложения:
// действие разрешено владельцу ресурса или администратору.
func (h *Handler) canModify(c *gin.Context, ownerID int64) bool {
	return currentUserID(c) == ownerID || h.isAdmin(c)
}

// baseData собирает общие данные для HTML-шаблонов: заголовок, имя
// текущего пользователя (для шапки) и CSRF-токен для форм.
func (h *Handler) baseData(c *gin.Context, title string) gin.H {
	return gin.H{
		"title":     title,
		"username":  currentUsername(c),
		"csrfToken": csrf.GetToken(c),
	}
}

// validationMessages разворачивает ошибку биндинга в список сообщений
// по полям для отображения в форме или JSON-ответе.
func validationMessages(err error) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []string{"Données invalides."}
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, "Le champ "+fe.Field()+" est requis.")
		case "max":
			msgs = append(msgs, "Le champ "+fe.Field()+" est trop long.")
		case "min":
			msgs = append(msgs, "Le champ "+fe.Field()+" est trop court.")
		case "email":
			msgs = append(msgs, "Email invalide.")
		default:
			msgs = append(msgs, "Le champ "+fe.Field()+" est invalide.")
		}
	}
	return msgs
}

// renderError отображает страницу ошибки с данным статусом и сообщением.
func (h *Handler) renderError(c *gin.Context, status int, title, message string) {
	data := h.baseData(c, title)
	data["message"] = message
	c.HTML(status, "error.html", data)
	c.Abort()
}

// abortServerError - единый ответ 500: детали остаются в логах,
// клиент получает общее сообщение.
func (h *Handler) abortServerError(c *gin.Context) {
	if wantsJSON(c) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Erreur du serveur",
		})
		return
	}
	h.renderError(c, http.StatusInternalServerError, "Erreur serveur", "Une erreur interne est survenue.")
}
