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
)

type commentForm struct {
	ProjectID int64  `form:"projectId" json:"projectId" binding:"required"`
	Comment   string `form:"comment" json:"comment" binding:"required,max=2000"`
}

// HandleCreateComment добавляет комментарий к проекту и возвращает его
// JSON-представление, чтобы клиент вставил его на страницу без
// перезагрузки.
func (h *Handler) HandleCreateComment(c *gin.Context) {
	var form commentForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": strings.Join(validationMessages(err), " "),
		})
		return
	}
	text := strings.TrimSpace(form.Comment)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Le commentaire ne peut pas être vide."})
		return
	}

	if _, err := h.store.GetProject(form.ProjectID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Projet non trouvé"})
			return
		}
		logrus.WithError(err).Error("Ошибка чтения проекта при добавлении комментария")
		h.abortServerError(c)
		return
	}

	date := time.Now().UTC().Format(time.RFC3339)
	id, err := h.store.CreateComment(form.ProjectID, currentUserID(c), text, date)
	if err != nil {
		logrus.WithError(err).Error("Не удалось сохранить комментарий")
		h.abortServerError(c)
		return
	}

	comment, err := h.store.GetComment(id)
	if err != nil {
		logrus.WithError(err).Error("Ошибка чтения созданного комментария")
		h.abortServerError(c)
		return
	}
	comment.CanDelete = true

	logrus.WithFields(logrus.Fields{"commentId": id, "projectId": form.ProjectID}).Info("Комментарий добавлен")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Commentaire ajouté",
		"comment": comment,
	})
}

// ListComments возвращает комментарии проекта в JSON. Каждому
// комментарию проставляется CanDelete для текущего пользователя.
func (h *Handler) ListComments(c *gin.Context) {
	projectID, err := strconv.ParseInt(c.Param("projectId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Identifiant de projet invalide"})
		return
	}
	comments, err := h.store.ListComments(projectID)
	if err != nil {
		logrus.WithError(err).Error("Ошибка чтения комментариев")
		h.abortServerError(c)
		return
	}
	for i := range comments {
		comments[i].CanDelete = h.canModify(c, comments[i].UserID)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "comments": comments})
}

// HandleDeleteComment удаляет комментарий вместе с его реакциями.
// Разрешено автору комментария или администратору.
func (h *Handler) HandleDeleteComment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Commentaire non trouvé"})
		return
	}
	comment, err := h.store.GetComment(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Commentaire non trouvé"})
			return
		}
		logrus.WithError(err).Error("Ошибка чтения комментария перед удалением")
		h.abortServerError(c)
		return
	}
	if !h.canModify(c, comment.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Vous n'êtes pas autorisé à supprimer ce commentaire"})
		return
	}

	if err := h.store.DeleteComment(id); err != nil {
		logrus.WithError(err).Error("Не удалось удалить комментарий")
		h.abortServerError(c)
		return
	}

	logrus.WithField("commentId", id).Info("Комментарий удален")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Commentaire supprimé"})
}
