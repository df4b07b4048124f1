package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/thekester/diyable/internal/database"
	"github.com/thekester/diyable/internal/models"
	"github.com/thekester/diyable/internal/services"
)

type projectForm struct {
	Name        string `form:"nom" binding:"required,max=255"`
	Description string `form:"description" binding:"required"`
	Category    string `form:"categorie" binding:"required,max=100"`
}

// ListProjects отображает каталог проектов, опционально отфильтрованный
// по категории из query-параметра.
func (h *Handler) ListProjects(c *gin.Context) {
	category := strings.TrimSpace(c.Query("category"))
	projects, err := h.store.ListProjects(category)
	if err != nil {
		logrus.WithError(err).Error("Не удалось получить список проектов")
		h.abortServerError(c)
		return
	}
	categories, err := h.store.ListCategories()
	if err != nil {
		logrus.WithError(err).Error("Не удалось получить категории")
		h.abortServerError(c)
		return
	}
	data := h.baseData(c, "Projets DIY")
	data["projects"] = projects
	data["categories"] = categories
	data["selectedCategory"] = category
	c.HTML(http.StatusOK, "projets.html", data)
}

// ShowProject отображает страницу проекта: описание, комментарии с
// количеством реакций и отметками реакций текущего пользователя.
func (h *Handler) ShowProject(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.renderError(c, http.StatusNotFound, "Projet introuvable", "Identifiant de projet invalide.")
		return
	}
	project, err := h.store.GetProject(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.renderError(c, http.StatusNotFound, "Projet introuvable", "Ce projet n'existe pas.")
			return
		}
		logrus.WithError(err).Error("Ошибка чтения проекта")
		h.abortServerError(c)
		return
	}

	comments, err := h.store.ListComments(id)
	if err != nil {
		logrus.WithError(err).Error("Ошибка чтения комментариев")
		h.abortServerError(c)
		return
	}
	userID := currentUserID(c)
	for i := range comments {
		comments[i].CanDelete = h.canModify(c, comments[i].UserID)
	}
	userReactions := map[int64][]string{}
	if userID != 0 {
		userReactions, err = h.store.UserReactions(id, userID)
		if err != nil {
			logrus.WithError(err).Error("Ошибка чтения реакций пользователя")
			h.abortServerError(c)
			return
		}
	}

	data := h.baseData(c, project.Name)
	data["project"] = project
	data["comments"] = comments
	data["userReactions"] = userReactions
	data["currentUserId"] = userID
	data["canEdit"] = h.canModify(c, project.UserID)
	c.HTML(http.StatusOK, "projectDetail.html", data)
}

// ShowCreateForm отображает форму создания проекта.
func (h *Handler) ShowCreateForm(c *gin.Context) {
	c.HTML(http.StatusOK, "createProject.html", h.baseData(c, "Nouveau projet"))
}

// HandleCreate создает проект из multipart-формы с необязательным
// изображением.
func (h *Handler) HandleCreate(c *gin.Context) {
	var form projectForm
	if err := c.ShouldBind(&form); err != nil {
		h.createFailed(c, validationMessages(err), form)
		return
	}

	image := ""
	if fileHeader, err := c.FormFile("image"); err == nil && fileHeader != nil {
		stored, err := services.ProcessAndSaveImage(fileHeader, h.cfg.UploadPath)
		if err != nil {
			h.createFailed(c, []string{imageErrorMessage(err)}, form)
			return
		}
		image = "uploads/" + stored
	}

	date := time.Now().UTC().Format(time.RFC3339)
	id, err := h.store.CreateProject(date, form.Name, form.Description, form.Category, image, currentUserID(c))
	if err != nil {
		logrus.WithError(err).Error("Не удалось создать проект")
		services.CleanupImage(h.cfg.UploadPath, image)
		h.abortServerError(c)
		return
	}

	logrus.WithFields(logrus.Fields{"projectId": id, "name": form.Name}).Info("Проект создан")
	c.Redirect(http.StatusFound, "/projets/"+strconv.FormatInt(id, 10))
}

func (h *Handler) createFailed(c *gin.Context, msgs []string, form projectForm) {
	data := h.baseData(c, "Nouveau projet")
	data["errors"] = msgs
	data["form"] = form
	c.HTML(http.StatusBadRequest, "createProject.html", data)
}

// ShowEditForm отображает форму редактирования проекта. Доступно только
// владельцу или администратору.
func (h *Handler) ShowEditForm(c *gin.Context) {
	project, ok := h.loadOwnedProject(c)
	if !ok {
		return
	}
	data := h.baseData(c, "Modifier le projet")
	data["project"] = project
	c.HTML(http.StatusOK, "editProject.html", data)
}

// HandleEdit сохраняет изменения проекта. Дата и владелец не меняются;
// новое изображение заменяет старое, старый файл удаляется.
func (h *Handler) HandleEdit(c *gin.Context) {
	project, ok := h.loadOwnedProject(c)
	if !ok {
		return
	}

	var form projectForm
	if err := c.ShouldBind(&form); err != nil {
		h.editFailed(c, project, validationMessages(err))
		return
	}

	image := project.Image
	if fileHeader, err := c.FormFile("image"); err == nil && fileHeader != nil {
		stored, err := services.ProcessAndSaveImage(fileHeader, h.cfg.UploadPath)
		if err != nil {
			h.editFailed(c, project, []string{imageErrorMessage(err)})
			return
		}
		image = "uploads/" + stored
	}

	if err := h.store.UpdateProject(project.ID, form.Name, form.Description, form.Category, image); err != nil {
		logrus.WithError(err).Error("Не удалось обновить проект")
		h.abortServerError(c)
		return
	}
	if image != project.Image && project.Image != "" {
		services.CleanupImage(h.cfg.UploadPath, strings.TrimPrefix(project.Image, "uploads/"))
	}

	logrus.WithField("projectId", project.ID).Info("Проект обновлен")
	c.Redirect(http.StatusFound, "/projets/"+strconv.FormatInt(project.ID, 10))
}

func (h *Handler) editFailed(c *gin.Context, project *models.Project, msgs []string) {
	data := h.baseData(c, "Modifier le projet")
	data["project"] = project
	data["errors"] = msgs
	c.HTML(http.StatusBadRequest, "editProject.html", data)
}

// HandleDelete удаляет проект вместе с комментариями и реакциями одной
// транзакцией. JSON-ответ, маршрут вызывается из клиентского скрипта.
func (h *Handler) HandleDelete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Projet non trouvé"})
		return
	}
	project, err := h.store.GetProject(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Projet non trouvé"})
			return
		}
		logrus.WithError(err).Error("Ошибка чтения проекта перед удалением")
		h.abortServerError(c)
		return
	}
	if !h.canModify(c, project.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Vous n'êtes pas autorisé à supprimer ce projet"})
		return
	}

	if err := h.store.DeleteProject(id); err != nil {
		logrus.WithError(err).Error("Не удалось удалить проект")
		h.abortServerError(c)
		return
	}
	if project.Image != "" {
		services.CleanupImage(h.cfg.UploadPath, strings.TrimPrefix(project.Image, "uploads/"))
	}

	logrus.WithField("projectId", id).Info("Проект удален")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Projet supprimé"})
}

// loadOwnedProject загружает проект из параметра :id и проверяет право
// текущего пользователя изменять его. При отказе ответ уже отправлен.
func (h *Handler) loadOwnedProject(c *gin.Context) (*models.Project, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.renderError(c, http.StatusNotFound, "Projet introuvable", "Identifiant de projet invalide.")
		return nil, false
	}
	project, err := h.store.GetProject(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.renderError(c, http.StatusNotFound, "Projet introuvable", "Ce projet n'existe pas.")
			return nil, false
		}
		logrus.WithError(err).Error("Ошибка чтения проекта")
		h.abortServerError(c)
		return nil, false
	}
	if !h.canModify(c, project.UserID) {
		h.renderError(c, http.StatusForbidden, "Accès refusé", "Vous n'êtes pas autorisé à modifier ce projet.")
		return nil, false
	}
	return project, true
}

func imageErrorMessage(err error) string {
	if errors.Is(err, services.ErrBadImageType) {
		return "Format d'image non supporté (JPEG, PNG ou GIF uniquement)."
	}
	if errors.Is(err, services.ErrImageTooLarge) {
		return "L'image dépasse la taille maximale de 5 Mo."
	}
	return "Impossible de traiter l'image."
}
