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

type reactionForm struct {
	Emoji string `form:"emoji" json:"emoji" binding:"required,max=16"`
}

// HandleToggleReaction переключает реакцию текущего пользователя на
// комментарий: повторная отправка того же эмодзи снимает реакцию.
// Ответ содержит итоговый счетчик и состояние после переключения.
func (h *Handler) HandleToggleReaction(c *gin.Context) {
	commentID, err := strconv.ParseInt(c.Param("commentId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Identifiant de commentaire invalide"})
		return
	}

	var form reactionForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Emoji manquant ou invalide"})
		return
	}
	emoji := strings.TrimSpace(form.Emoji)
	if emoji == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Emoji manquant ou invalide"})
		return
	}

	date := time.Now().UTC().Format(time.RFC3339)
	count, hasReacted, err := h.store.ToggleReaction(commentID, currentUserID(c), emoji, date)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Commentaire non trouvé"})
			return
		}
		logrus.WithError(err).Error("Не удалось переключить реакцию")
		h.abortServerError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"updatedCount":   count,
		"userHasReacted": hasReacted,
	})
}
