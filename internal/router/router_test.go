package router_test

import (
	"bytes"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thekester/diyable/internal/config"
	"github.com/thekester/diyable/internal/database"
	"github.com/thekester/diyable/internal/handlers"
	"github.com/thekester/diyable/internal/router"
)

var (
	csrfInputRe = regexp.MustCompile(`name="_csrf" value="([^"]+)"`)
	csrfMetaRe  = regexp.MustCompile(`name="csrf-token" content="([^"]+)"`)
)

// testApp поднимает полный HTTP-стек на временной базе данных.
type testApp struct {
	t     *testing.T
	srv   *httptest.Server
	store *database.Store
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := database.Open(filepath.Join(t.TempDir(), "diyable.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate())

	cfg := config.Config{
		SessionSecret: "secret-de-test",
		AdminUsername: "admin",
		Port:          "0",
		UploadPath:    t.TempDir(),
		TemplatesGlob: "../../web/templates/*.html",
		StaticPath:    "../../web/static",
	}
	srv := httptest.NewServer(router.New(store, cfg))
	t.Cleanup(srv.Close)
	return &testApp{t: t, srv: srv, store: store}
}

// newClient возвращает HTTP-клиент с cookie-хранилищем, не следующий
// редиректам: тесты проверяют Location явно.
func (a *testApp) newClient() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(a.t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (a *testApp) get(client *http.Client, path string) (*http.Response, string) {
	a.t.Helper()
	resp, err := client.Get(a.srv.URL + path)
	require.NoError(a.t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	resp.Body.Close()
	return resp, string(body)
}

// csrfFromPage достает CSRF-токен из скрытого поля формы на странице.
func (a *testApp) csrfFromPage(client *http.Client, path string) string {
	a.t.Helper()
	resp, body := a.get(client, path)
	require.Equal(a.t, http.StatusOK, resp.StatusCode)
	m := csrfInputRe.FindStringSubmatch(body)
	if m == nil {
		m = csrfMetaRe.FindStringSubmatch(body)
	}
	require.NotNil(a.t, m, "CSRF-токен не найден на странице %s", path)
	return m[1]
}

func (a *testApp) postForm(client *http.Client, path string, form url.Values) (*http.Response, string) {
	a.t.Helper()
	resp, err := client.PostForm(a.srv.URL+path, form)
	require.NoError(a.t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	resp.Body.Close()
	return resp, string(body)
}

// doJSON выполняет запрос как клиентский скрипт: JSON-тело, токен в
// заголовке X-CSRF-TOKEN.
func (a *testApp) doJSON(client *http.Client, method, path, token string, payload any, out any) *http.Response {
	a.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(a.t, err)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, body)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if token != "" {
		req.Header.Set("X-CSRF-TOKEN", token)
	}
	resp, err := client.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// register и login проводят пользователя через настоящие формы с CSRF.
func (a *testApp) register(client *http.Client, username, email, password string) {
	a.t.Helper()
	token := a.csrfFromPage(client, "/register")
	resp, _ := a.postForm(client, "/register", url.Values{
		"_csrf":    {token},
		"username": {username},
		"email":    {email},
		"password": {password},
	})
	require.Equal(a.t, http.StatusFound, resp.StatusCode)
}

func (a *testApp) login(client *http.Client, username, password string) {
	a.t.Helper()
	token := a.csrfFromPage(client, "/login")
	resp, _ := a.postForm(client, "/login", url.Values{
		"_csrf":    {token},
		"username": {username},
		"password": {password},
	})
	require.Equal(a.t, http.StatusFound, resp.StatusCode)
	require.Equal(a.t, "/", resp.Header.Get("Location"))
}

// createProject создает проект через форму и возвращает его ID.
func (a *testApp) createProject(client *http.Client, name string) int64 {
	a.t.Helper()
	token := a.csrfFromPage(client, "/projets/ajouter")
	resp, _ := a.postForm(client, "/projets/ajouter", url.Values{
		"_csrf":       {token},
		"nom":         {name},
		"categorie":   {"Bois"},
		"description": {"Description du projet " + name},
	})
	require.Equal(a.t, http.StatusFound, resp.StatusCode)
	loc := resp.Header.Get("Location")
	require.True(a.t, strings.HasPrefix(loc, "/projets/"), "неожиданный редирект %q", loc)
	id, err := strconv.ParseInt(strings.TrimPrefix(loc, "/projets/"), 10, 64)
	require.NoError(a.t, err)
	return id
}

type commentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Comment struct {
		ID        int64            `json:"id"`
		ProjectID int64            `json:"projectId"`
		Comment   string           `json:"comment"`
		Username  string           `json:"username"`
		CanDelete bool             `json:"canDelete"`
		Reactions map[string]int64 `json:"reactions"`
	} `json:"comment"`
}

type reactionResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	UpdatedCount   int64  `json:"updatedCount"`
	UserHasReacted bool   `json:"userHasReacted"`
}

func TestRegisterLoginLogout(t *testing.T) {
	app := newTestApp(t)
	client := app.newClient()

	app.register(client, "alice", "alice@example.com", "motdepasse")

	// Неверный пароль и несуществующий пользователь дают одинаковый 401.
	token := app.csrfFromPage(client, "/login")
	resp, body := app.postForm(client, "/login", url.Values{
		"_csrf": {token}, "username": {"alice"}, "password": {"mauvais"},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Nom d&#39;utilisateur ou mot de passe incorrect.")

	token = app.csrfFromPage(client, "/login")
	resp, body = app.postForm(client, "/login", url.Values{
		"_csrf": {token}, "username": {"personne"}, "password": {"motdepasse"},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Nom d&#39;utilisateur ou mot de passe incorrect.")

	app.login(client, "alice", "motdepasse")
	resp, body = app.get(client, "/profile")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "alice@example.com")

	resp, _ = app.get(client, "/logout")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	resp, _ = app.get(client, "/profile")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestRegisterDuplicate(t *testing.T) {
	app := newTestApp(t)
	client := app.newClient()
	app.register(client, "alice", "alice@example.com", "motdepasse")

	// AJAX-клиент получает 409, браузер - 400 с формой.
	token := app.csrfFromPage(client, "/register")
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	resp := app.doJSON(client, http.MethodPost, "/register", token,
		map[string]string{"username": "alice", "email": "autre@example.com", "password": "motdepasse"}, &out)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, out.Success)

	token = app.csrfFromPage(client, "/register")
	resp2, body := app.postForm(client, "/register", url.Values{
		"_csrf": {token}, "username": {"bob"}, "email": {"alice@example.com"}, "password": {"motdepasse"},
	})
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
	assert.Contains(t, body, "Cet email est déjà utilisé.")
}

func TestProjectCommentReactionFlow(t *testing.T) {
	app := newTestApp(t)
	client := app.newClient()
	app.register(client, "alice", "alice@example.com", "motdepasse")
	app.login(client, "alice", "motdepasse")

	projectID := app.createProject(client, "Étagère en palettes")
	token := app.csrfFromPage(client, "/projets/"+strconv.FormatInt(projectID, 10))

	var created commentResponse
	resp := app.doJSON(client, http.MethodPost, "/comments", token,
		map[string]any{"projectId": projectID, "comment": "Très beau projet !"}, &created)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, created.Success)
	assert.Equal(t, "Très beau projet !", created.Comment.Comment)
	assert.Equal(t, "alice", created.Comment.Username)
	assert.True(t, created.Comment.CanDelete)
	assert.Empty(t, created.Comment.Reactions)

	reactPath := "/react/" + strconv.FormatInt(created.Comment.ID, 10)

	// Первый клик ставит реакцию, второй снимает.
	var re reactionResponse
	resp = app.doJSON(client, http.MethodPost, reactPath, token, map[string]string{"emoji": "👍"}, &re)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, re.Success)
	assert.Equal(t, int64(1), re.UpdatedCount)
	assert.True(t, re.UserHasReacted)

	resp = app.doJSON(client, http.MethodPost, reactPath, token, map[string]string{"emoji": "👍"}, &re)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(0), re.UpdatedCount)
	assert.False(t, re.UserHasReacted)

	// Пустой или отсутствующий эмодзи - 400.
	resp = app.doJSON(client, http.MethodPost, reactPath, token, map[string]string{"emoji": "  "}, &re)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = app.doJSON(client, http.MethodPost, "/react/9999", token, map[string]string{"emoji": "👍"}, &re)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Список комментариев отдает JSON с комментарием и флагом удаления.
	var list struct {
		Success  bool `json:"success"`
		Comments []struct {
			ID        int64 `json:"id"`
			CanDelete bool  `json:"canDelete"`
		} `json:"comments"`
	}
	resp = app.doJSON(client, http.MethodGet, "/comments/"+strconv.FormatInt(projectID, 10), "", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list.Comments, 1)
	assert.True(t, list.Comments[0].CanDelete)
}

func TestOwnershipEnforced(t *testing.T) {
	app := newTestApp(t)

	alice := app.newClient()
	app.register(alice, "alice", "alice@example.com", "motdepasse")
	app.login(alice, "alice", "motdepasse")
	projectID := app.createProject(alice, "Nichoir à oiseaux")

	bob := app.newClient()
	app.register(bob, "bob", "bob@example.com", "motdepasse")
	app.login(bob, "bob", "motdepasse")

	// Боб не владелец: страница редактирования недоступна.
	resp, _ := app.get(bob, "/projets/"+strconv.FormatInt(projectID, 10)+"/edit")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Удаление чужого проекта запрещено и ничего не меняет.
	token := app.csrfFromPage(bob, "/projets/"+strconv.FormatInt(projectID, 10))
	var out struct {
		Success bool `json:"success"`
	}
	resp = app.doJSON(bob, http.MethodDelete, "/projets/"+strconv.FormatInt(projectID, 10), token, nil, &out)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, out.Success)

	project, err := app.store.GetProject(projectID)
	require.NoError(t, err)
	assert.Equal(t, "Nichoir à oiseaux", project.Name)

	// Чужой комментарий Боб удалить не может, свой - может.
	pageToken := app.csrfFromPage(alice, "/projets/"+strconv.FormatInt(projectID, 10))
	var created commentResponse
	app.doJSON(alice, http.MethodPost, "/comments", pageToken,
		map[string]any{"projectId": projectID, "comment": "Mon commentaire"}, &created)
	require.True(t, created.Success)

	resp = app.doJSON(bob, http.MethodDelete, "/comments/"+strconv.FormatInt(created.Comment.ID, 10), token, nil, &out)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = app.doJSON(alice, http.MethodDelete, "/comments/"+strconv.FormatInt(created.Comment.ID, 10), pageToken, nil, &out)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Success)
}

func TestAdminMayModerate(t *testing.T) {
	app := newTestApp(t)

	alice := app.newClient()
	app.register(alice, "alice", "alice@example.com", "motdepasse")
	app.login(alice, "alice", "motdepasse")
	projectID := app.createProject(alice, "Lampe de chevet")

	// "admin" совпадает с настроенным ADMIN_USERNAME.
	admin := app.newClient()
	app.register(admin, "admin", "admin@example.com", "motdepasse")
	app.login(admin, "admin", "motdepasse")

	token := app.csrfFromPage(admin, "/projets/"+strconv.FormatInt(projectID, 10))
	var out struct {
		Success bool `json:"success"`
	}
	resp := app.doJSON(admin, http.MethodDelete, "/projets/"+strconv.FormatInt(projectID, 10), token, nil, &out)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Success)

	_, err := app.store.GetProject(projectID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestAuthRequired(t *testing.T) {
	app := newTestApp(t)
	client := app.newClient()

	resp, _ := app.get(client, "/projets/ajouter")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	// API без сессии: CSRF-проверка и аутентификация обе дают 403 JSON.
	var out struct {
		Success bool `json:"success"`
	}
	token := app.csrfFromPage(client, "/login")
	resp = app.doJSON(client, http.MethodPost, "/comments", token,
		map[string]any{"projectId": 1, "comment": "anonyme"}, &out)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, out.Success)
}

func TestCSRFRejected(t *testing.T) {
	app := newTestApp(t)
	client := app.newClient()
	app.register(client, "alice", "alice@example.com", "motdepasse")
	app.login(client, "alice", "motdepasse")
	projectID := app.createProject(client, "Table basse")

	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	resp := app.doJSON(client, http.MethodPost, "/comments", "",
		map[string]any{"projectId": projectID, "comment": "sans jeton"}, &out)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, out.Success)

	// Браузерная форма без токена получает HTML-страницу ошибки.
	req, err := http.NewRequest(http.MethodPost, app.srv.URL+"/change-password",
		strings.NewReader(url.Values{"currentPassword": {"x"}, "newPassword": {"xxxxxx"}}.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	htmlResp, err := client.Do(req)
	require.NoError(t, err)
	defer htmlResp.Body.Close()
	body, _ := io.ReadAll(htmlResp.Body)
	assert.Equal(t, http.StatusForbidden, htmlResp.StatusCode)
	assert.Contains(t, string(body), "Votre session a expiré ou est invalide.")
}

func TestStaticPagesRender(t *testing.T) {
	app := newTestApp(t)
	client := app.newClient()
	for _, page := range handlers.StaticPages {
		resp, body := app.get(client, page.Path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, page.Path)
		assert.Contains(t, body, html.EscapeString(page.Title), page.Path)
	}
}

func TestHomeShowsRecentProjects(t *testing.T) {
	app := newTestApp(t)
	client := app.newClient()
	app.register(client, "alice", "alice@example.com", "motdepasse")
	app.login(client, "alice", "motdepasse")
	app.createProject(client, "Premier projet")
	app.createProject(client, "Deuxième projet")

	resp, body := app.get(client, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Premier projet")
	assert.Contains(t, body, "Deuxième projet")
}

func TestChangePassword(t *testing.T) {
	app := newTestApp(t)
	client := app.newClient()
	app.register(client, "alice", "alice@example.com", "motdepasse")
	app.login(client, "alice", "motdepasse")

	// Неверный текущий пароль - это 400 (ошибка данных формы), не 401.
	token := app.csrfFromPage(client, "/profile")
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	resp := app.doJSON(client, http.MethodPost, "/change-password", token,
		map[string]string{"currentPassword": "mauvais", "newPassword": "nouveaumdp"}, &out)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, out.Success)

	// Та же ошибка через браузерную форму.
	resp2, body := app.postForm(client, "/change-password", url.Values{
		"_csrf":           {token},
		"currentPassword": {"mauvais"},
		"newPassword":     {"nouveaumdp"},
	})
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
	assert.Contains(t, body, "Mot de passe actuel incorrect.")

	// Успешная смена закрывает сессию и отправляет на страницу входа.
	token = app.csrfFromPage(client, "/profile")
	var ok struct {
		Success  bool   `json:"success"`
		Redirect string `json:"redirect"`
	}
	resp = app.doJSON(client, http.MethodPost, "/change-password", token,
		map[string]string{"currentPassword": "motdepasse", "newPassword": "nouveaumdp"}, &ok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, ok.Success)
	assert.Equal(t, "/login", ok.Redirect)

	resp3, _ := app.get(client, "/profile")
	assert.Equal(t, http.StatusFound, resp3.StatusCode)

	// Старый пароль больше не действует, новый - действует.
	loginToken := app.csrfFromPage(client, "/login")
	resp4, _ := app.postForm(client, "/login", url.Values{
		"_csrf": {loginToken}, "username": {"alice"}, "password": {"motdepasse"},
	})
	assert.Equal(t, http.StatusUnauthorized, resp4.StatusCode)
	app.login(client, "alice", "nouveaumdp")
}
