package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StaticPage описывает информационную страницу без серверной логики.
type StaticPage struct {
	Path  string
	Title string
}

// StaticPages - полный список информационных страниц сайта. Все они
// рендерятся одним шаблоном page.html, различаясь только заголовком.
var StaticPages = []StaticPage{
	{Path: "/contact", Title: "Contact"},
	{Path: "/about", Title: "À propos"},
	{Path: "/terms-of-service", Title: "Conditions d'utilisation"},
	{Path: "/privacy-policy", Title: "Politique de confidentialité"},
	{Path: "/legal-info", Title: "Informations légales"},
	{Path: "/accessibility-policy", Title: "Politique d'accessibilité"},
	{Path: "/refund-policy", Title: "Politique de remboursement"},
	{Path: "/affiliate", Title: "Programme d'affiliation"},
	{Path: "/learn/blog", Title: "Blog"},
	{Path: "/learn/faq", Title: "FAQ"},
	{Path: "/learn/our-story", Title: "Notre histoire"},
	{Path: "/learn/tips-tricks", Title: "Trucs et astuces"},
	{Path: "/learn/tutorials", Title: "Tutoriels"},
	{Path: "/shop", Title: "Boutique"},
	{Path: "/shop/tools", Title: "Outils"},
	{Path: "/shop/accessories", Title: "Accessoires"},
	{Path: "/shop/all", Title: "Tout le catalogue"},
	{Path: "/shop/starter-kits", Title: "Kits de démarrage"},
	{Path: "/shop/projects", Title: "Projets de la boutique"},
}

// ShowStaticPage возвращает обработчик информационной страницы.
func (h *Handler) ShowStaticPage(page StaticPage) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "page.html", h.baseData(c, page.Title))
	}
}

// ShowHome рендерит главную страницу с двумя последними проектами.
func (h *Handler) ShowHome(c *gin.Context) {
	projects, err := h.store.RecentProjects(2)
	if err != nil {
		logrus.WithError(err).Error("Не удалось получить последние проекты")
		h.abortServerError(c)
		return
	}
	data := h.baseData(c, "Accueil")
	data["projects"] = projects
	c.HTML(http.StatusOK, "index.html", data)
}

// ShowNotFound - обработчик для неизвестных маршрутов.
func (h *Handler) ShowNotFound(c *gin.Context) {
	if wantsJSON(c) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Page non trouvée"})
		return
	}
	h.renderError(c, http.StatusNotFound, "Page non trouvée", "La page demandée n'existe pas.")
}
