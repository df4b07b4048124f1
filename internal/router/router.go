// Package router собирает gin-движок приложения: middleware, шаблоны,
// статика и все маршруты. Вынесен из main, чтобы тесты могли поднять
// полный HTTP-стек без запуска процесса.
package router

import (
	"html/template"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	csrf "github.com/utrack/gin-csrf"

	"github.com/thekester/diyable/internal/config"
	"github.com/thekester/diyable/internal/database"
	"github.com/thekester/diyable/internal/handlers"
	"github.com/thekester/diyable/internal/middleware"
)

// New строит готовый к запуску движок. cfg.SessionSecret должен быть
// уже заполнен вызывающей стороной.
func New(store *database.Store, cfg config.Config) *gin.Engine {
	h := handlers.New(store, cfg)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
	})
	r.Use(sessions.Sessions("diyable_session", sessionStore))
	r.Use(csrf.Middleware(csrf.Options{
		Secret:    cfg.SessionSecret,
		ErrorFunc: middleware.CSRFError(),
	}))
	r.Use(middleware.Identify())

	r.SetFuncMap(template.FuncMap{
		// Палитра эмодзи, доступных для реакций на комментарии.
		"emojiPalette": func() []string {
			return []string{"👍", "❤️", "😂", "😮", "😢", "👏"}
		},
		// hasReacted сообщает, ставил ли текущий пользователь данную
		// реакцию на данный комментарий.
		"hasReacted": func(userReactions map[int64][]string, commentID int64, emoji string) bool {
			for _, e := range userReactions[commentID] {
				if e == emoji {
					return true
				}
			}
			return false
		},
	})
	r.LoadHTMLGlob(cfg.TemplatesGlob)
	r.Static("/static", cfg.StaticPath)
	r.Static("/uploads", cfg.UploadPath)

	// Публичные страницы.
	r.GET("/", h.ShowHome)
	for _, page := range handlers.StaticPages {
		r.GET(page.Path, h.ShowStaticPage(page))
	}
	r.GET("/projets", h.ListProjects)
	r.GET("/projets/:id", h.ShowProject)
	r.GET("/comments/:projectId", h.ListComments)

	// Регистрация и вход.
	r.GET("/register", h.ShowRegister)
	r.POST("/register", h.HandleRegister)
	r.GET("/login", h.ShowLogin)
	r.POST("/login", h.HandleLogin)
	r.GET("/logout", h.HandleLogout)

	// Страницы, требующие входа.
	authPages := r.Group("/", middleware.AuthRequired())
	{
		authPages.GET("/profile", h.ShowProfile)
		authPages.POST("/change-password", h.HandleChangePassword)
		authPages.GET("/projets/ajouter", h.ShowCreateForm)
		authPages.POST("/projets/ajouter", h.HandleCreate)
		authPages.GET("/projets/:id/edit", h.ShowEditForm)
		authPages.POST("/projets/:id/edit", h.HandleEdit)
	}

	// JSON-API: клиентский скрипт, ответы всегда JSON.
	api := r.Group("/", middleware.AuthRequiredJSON())
	{
		api.DELETE("/projets/:id", h.HandleDelete)
		api.POST("/comments", h.HandleCreateComment)
		api.DELETE("/comments/:id", h.HandleDeleteComment)
		api.POST("/react/:commentId", h.HandleToggleReaction)
	}

	r.NoRoute(h.ShowNotFound)
	return r
}
