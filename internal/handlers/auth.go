package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/thekester/diyable/internal/auth"
	"github.com/thekester/diyable/internal/database"
	"github.com/thekester/diyable/internal/middleware"
)

// Единое сообщение при неудачном входе: не раскрываем, существует ли
// пользователь.
const loginFailedMessage = "Nom d'utilisateur ou mot de passe incorrect."

type registerForm struct {
	Username string `form:"username" json:"username" binding:"required,max=50"`
	Email    string `form:"email" json:"email" binding:"required,email"`
	Password string `form:"password" json:"password" binding:"required,min=6"`
}

type loginForm struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

type changePasswordForm struct {
	CurrentPassword string `form:"currentPassword" json:"currentPassword" binding:"required"`
	NewPassword     string `form:"newPassword" json:"newPassword" binding:"required,min=6"`
}

// ShowRegister отображает форму регистрации.
func (h *Handler) ShowRegister(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", h.baseData(c, "Inscription"))
}

// HandleRegister создает нового пользователя. Дубликаты имени или email
// возвращают 409 для AJAX-клиентов и 400 с формой для браузера.
func (h *Handler) HandleRegister(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		h.registerFailed(c, http.StatusBadRequest, validationMessages(err), form)
		return
	}
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.ToLower(strings.TrimSpace(form.Email))

	_, err := h.store.CreateUser(form.Username, form.Email, form.Password)
	switch {
	case errors.Is(err, database.ErrDuplicateUsername):
		h.registerFailed(c, http.StatusConflict, []string{"Ce nom d'utilisateur est déjà pris."}, form)
		return
	case errors.Is(err, database.ErrDuplicateEmail):
		h.registerFailed(c, http.StatusConflict, []string{"Cet email est déjà utilisé."}, form)
		return
	case err != nil:
		logrus.WithError(err).Error("Не удалось создать пользователя")
		h.abortServerError(c)
		return
	}

	logrus.WithField("username", form.Username).Info("Зарегистрирован новый пользователь")
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Inscription réussie. Vous pouvez vous connecter."})
		return
	}
	c.Redirect(http.StatusFound, "/login")
}

func (h *Handler) registerFailed(c *gin.Context, status int, msgs []string, form registerForm) {
	if wantsJSON(c) {
		c.JSON(status, gin.H{"success": false, "message": strings.Join(msgs, " ")})
		return
	}
	// Браузерные клиенты получают форму обратно; для них и дубликат,
	// и ошибка валидации - это 400 с сообщением в форме.
	if status == http.StatusConflict {
		status = http.StatusBadRequest
	}
	data := h.baseData(c, "Inscription")
	data["errors"] = msgs
	data["formUsername"] = form.Username
	data["formEmail"] = form.Email
	c.HTML(status, "register.html", data)
}

// ShowLogin отображает форму входа.
func (h *Handler) ShowLogin(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", h.baseData(c, "Connexion"))
}

// HandleLogin проверяет учетные данные и открывает сессию. Неизвестный
// пользователь и неверный пароль дают одинаковый ответ 401.
func (h *Handler) HandleLogin(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		h.loginFailed(c, form.Username)
		return
	}

	user, err := h.store.GetUserByUsername(strings.TrimSpace(form.Username))
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logrus.WithError(err).Error("Ошибка чтения пользователя при входе")
			h.abortServerError(c)
			return
		}
		h.loginFailed(c, form.Username)
		return
	}
	if !auth.CheckPassword(form.Password, user.Salt, user.Password) {
		h.loginFailed(c, form.Username)
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserID, user.ID)
	session.Set(middleware.SessionUsername, user.Username)
	if err := session.Save(); err != nil {
		logrus.WithError(err).Error("Не удалось сохранить сессию")
		h.abortServerError(c)
		return
	}

	logrus.WithField("username", user.Username).Info("Пользователь вошел в систему")
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) loginFailed(c *gin.Context, username string) {
	logrus.WithField("username", username).Warn("Неудачная попытка входа")
	if wantsJSON(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": loginFailedMessage})
		return
	}
	data := h.baseData(c, "Connexion")
	data["errors"] = []string{loginFailedMessage}
	data["formUsername"] = username
	c.HTML(http.StatusUnauthorized, "login.html", data)
}

// HandleLogout закрывает сессию и возвращает на главную.
func (h *Handler) HandleLogout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		logrus.WithError(err).Error("Не удалось удалить сессию")
		h.abortServerError(c)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// ShowProfile отображает профиль текущего пользователя.
func (h *Handler) ShowProfile(c *gin.Context) {
	user, err := h.store.GetUserByID(currentUserID(c))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Сессия ссылается на удаленного пользователя.
			h.HandleLogout(c)
			return
		}
		logrus.WithError(err).Error("Ошибка чтения профиля")
		h.abortServerError(c)
		return
	}
	data := h.baseData(c, "Profil")
	data["user"] = user
	c.HTML(http.StatusOK, "profile.html", data)
}

// HandleChangePassword меняет пароль текущего пользователя и закрывает
// сессию: после смены нужно войти заново.
func (h *Handler) HandleChangePassword(c *gin.Context) {
	var form changePasswordForm
	if err := c.ShouldBind(&form); err != nil {
		h.changePasswordFailed(c, http.StatusBadRequest, validationMessages(err))
		return
	}

	user, err := h.store.GetUserByID(currentUserID(c))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Сессия ссылается на удаленного пользователя.
			if wantsJSON(c) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Utilisateur non trouvé"})
				return
			}
			h.renderError(c, http.StatusNotFound, "Utilisateur non trouvé", "Ce compte n'existe plus.")
			return
		}
		logrus.WithError(err).Error("Ошибка чтения пользователя при смене пароля")
		h.abortServerError(c)
		return
	}
	// Несовпадение текущего пароля - ошибка данных формы, не аутентификации.
	if !auth.CheckPassword(form.CurrentPassword, user.Salt, user.Password) {
		h.changePasswordFailed(c, http.StatusBadRequest, []string{"Mot de passe actuel incorrect."})
		return
	}
	if err := h.store.UpdatePassword(user.ID, form.NewPassword); err != nil {
		logrus.WithError(err).Error("Не удалось обновить пароль")
		h.abortServerError(c)
		return
	}

	logrus.WithField("username", user.Username).Info("Пароль изменен")
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		logrus.WithError(err).Error("Не удалось закрыть сессию после смены пароля")
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"message":  "Mot de passe modifié. Veuillez vous reconnecter.",
			"redirect": "/login",
		})
		return
	}
	c.Redirect(http.StatusFound, "/login")
}

func (h *Handler) changePasswordFailed(c *gin.Context, status int, msgs []string) {
	if wantsJSON(c) {
		c.JSON(status, gin.H{"success": false, "message": strings.Join(msgs, " ")})
		return
	}
	user, err := h.store.GetUserByID(currentUserID(c))
	if err != nil {
		h.abortServerError(c)
		return
	}
	data := h.baseData(c, "Profil")
	data["user"] = user
	data["errors"] = msgs
	c.HTML(status, "profile.html", data)
}
