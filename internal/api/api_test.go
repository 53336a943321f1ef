package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/komponente/internal/auth"
	"github.com/erazemk/komponente/internal/blob"
	"github.com/erazemk/komponente/internal/component"
	"github.com/erazemk/komponente/internal/db"
	"github.com/erazemk/komponente/internal/model"
	"github.com/erazemk/komponente/internal/store"
)

const testJWTSecret = "test-secret"

type testEnv struct {
	server  *httptest.Server
	db      *sql.DB
	service *component.Service
}

func newTestEnv(t *testing.T, scope component.CompanyScope) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)
	images := blob.NewResolver(blob.NewSQLStore(database))
	service := component.NewService(database, db.SQLite, images)
	service.SetCompanyScope(scope)

	server := httptest.NewServer(NewRouter(database, db.SQLite, testJWTSecret, service, images))
	t.Cleanup(server.Close)
	return &testEnv{server: server, db: database, service: service}
}

func (e *testEnv) createUser(t *testing.T, username, role string, companyID *int64) *model.User {
	t.Helper()
	hash, err := auth.HashPassword("password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user, err := store.CreateUser(context.Background(), e.db, username, hash, role, companyID)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": "password"})
	resp, err := http.Post(e.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	token := loginResp["token"]
	if token == "" {
		t.Fatal("empty token from login")
	}
	return token
}

func setupTestServer(t *testing.T) (*testEnv, string) {
	t.Helper()
	env := newTestEnv(t, component.CompanyScope{})
	env.createUser(t, "admin", model.RoleAdmin, nil)
	return env, env.login(t, "admin")
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// do sends an authenticated JSON request and decodes the response into out
// when out is not nil. Returns the status code.
func do(t *testing.T, method, url, token string, body, out any) int {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestLoginEndpoint(t *testing.T) {
	env, _ := setupTestServer(t)

	// Test invalid credentials.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(env.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	body, _ = json.Marshal(map[string]string{"username": "nobody", "password": "password"})
	resp, _ = http.Post(env.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown user, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	env, token := setupTestServer(t)

	assert.Equal(t, http.StatusOK, do(t, "GET", env.server.URL+"/api/components", token, nil, nil))
	assert.Equal(t, http.StatusOK, do(t, "POST", env.server.URL+"/api/auth/logout", token, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, do(t, "GET", env.server.URL+"/api/components", token, nil, nil))
}

func TestComponentsAPIFlow(t *testing.T) {
	env, token := setupTestServer(t)
	base := env.server.URL + "/api/components"

	var created model.Component
	status := do(t, "POST", base, token, map[string]any{
		"name":          "RAM 8GB",
		"qty":           10,
		"serial":        "SN123",
		"purchase_cost": "24.50",
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "RAM 8GB", created.Name)
	assert.Equal(t, "24.5", created.PurchaseCost.Decimal.String())

	url := base + "/" + itoa(created.ID)

	var alloc model.Allocation
	status = do(t, "POST", url+"/allocations", token, model.Assignment{
		AssignedType: model.AssignedToAsset,
		AssignedTo:   42,
		Quantity:     3,
	}, &alloc)
	require.Equal(t, http.StatusCreated, status)

	var got struct {
		Qty       int `json:"qty"`
		Allocated int `json:"allocated"`
		Remaining int `json:"remaining"`
	}
	require.Equal(t, http.StatusOK, do(t, "GET", url, token, nil, &got))
	assert.Equal(t, 10, got.Qty)
	assert.Equal(t, 3, got.Allocated)
	assert.Equal(t, 7, got.Remaining)

	var rejected validationResponse
	status = do(t, "PUT", url, token, map[string]any{"name": "RAM 8GB", "qty": 2}, &rejected)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.NotNil(t, rejected.MinQty)
	assert.Equal(t, 3, *rejected.MinQty)
	assert.Contains(t, rejected.Fields, "qty")

	var updated model.Component
	require.Equal(t, http.StatusOK, do(t, "PUT", url, token, map[string]any{"name": "RAM 8GB", "qty": 3}, &updated))
	assert.Equal(t, 3, updated.Qty)
	assert.Equal(t, "", updated.Serial, "omitted fields are cleared")

	assert.Equal(t, http.StatusUnprocessableEntity, do(t, "DELETE", url, token, nil, nil))

	checkinURL := env.server.URL + "/api/allocations/" + itoa(alloc.ID) + "/checkin"
	require.Equal(t, http.StatusOK, do(t, "POST", checkinURL, token, nil, nil))

	require.Equal(t, http.StatusOK, do(t, "DELETE", url, token, nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, "GET", url, token, nil, nil))
}

func TestComponentJSONCarriesNulls(t *testing.T) {
	env, token := setupTestServer(t)

	var created model.Component
	require.Equal(t, http.StatusCreated, do(t, "POST", env.server.URL+"/api/components", token,
		map[string]any{"name": "Cable", "qty": 1}, &created))

	var raw map[string]any
	require.Equal(t, http.StatusOK, do(t, "GET", env.server.URL+"/api/components/"+itoa(created.ID), token, nil, &raw))

	for _, field := range []string{"notes", "category_id", "purchase_cost", "image", "min_amt"} {
		v, ok := raw[field]
		assert.True(t, ok, "field %s missing", field)
		assert.Nil(t, v, "field %s", field)
	}
}

func TestCloneEndpoint(t *testing.T) {
	env, token := setupTestServer(t)

	var created model.Component
	require.Equal(t, http.StatusCreated, do(t, "POST", env.server.URL+"/api/components", token,
		map[string]any{"name": "Cable", "qty": 10, "serial": "SN123"}, &created))

	var draft model.Component
	require.Equal(t, http.StatusOK, do(t, "GET", env.server.URL+"/api/components/"+itoa(created.ID)+"/clone", token, nil, &draft))
	assert.Zero(t, draft.ID)
	assert.Equal(t, "", draft.Serial)
	assert.Equal(t, 10, draft.Qty)

	var list []model.Component
	require.Equal(t, http.StatusOK, do(t, "GET", env.server.URL+"/api/components", token, nil, &list))
	assert.Len(t, list, 1)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	img.Set(2, 2, color.RGBA{0, 0, 255, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageUploadAndFetch(t *testing.T) {
	env, token := setupTestServer(t)

	var created model.Component
	require.Equal(t, http.StatusCreated, do(t, "POST", env.server.URL+"/api/components", token,
		map[string]any{"name": "Cable", "qty": 1}, &created))
	imageURL := env.server.URL + "/api/components/" + itoa(created.ID) + "/image"

	assert.Equal(t, http.StatusNotFound, do(t, "GET", imageURL, token, nil, nil))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "cable.png")
	require.NoError(t, err)
	_, err = part.Write(testPNG(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest("PUT", imageURL, &body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ = authRequest("GET", imageURL, token, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, data)

	require.Equal(t, http.StatusOK, do(t, "DELETE", imageURL, token, nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, "GET", imageURL, token, nil, nil))
}

func TestUnauthenticatedAccess(t *testing.T) {
	env := newTestEnv(t, component.CompanyScope{})

	resp, _ := http.Get(env.server.URL + "/api/components")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRoleBasedAccess(t *testing.T) {
	env := newTestEnv(t, component.CompanyScope{})
	user := env.createUser(t, "user1", model.RoleUser, nil)

	userToken, _ := auth.GenerateToken(testJWTSecret, store.ActorForUser(user))

	// Regular user should not be able to create components (manager+ required).
	req, _ := authRequest("POST", env.server.URL+"/api/components", userToken, map[string]any{
		"name": "Test",
		"qty":  1,
	})
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for user creating component, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Regular user should not access /api/users.
	req, _ = authRequest("GET", env.server.URL+"/api/users", userToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for user accessing users, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCompanyScopedAccess(t *testing.T) {
	env := newTestEnv(t, component.CompanyScope{FullCompanySupport: true})
	env.createUser(t, "admin", model.RoleAdmin, nil)
	adminToken := env.login(t, "admin")

	var a, b model.Company
	require.Equal(t, http.StatusCreated, do(t, "POST", env.server.URL+"/api/companies", adminToken, map[string]string{"name": "A"}, &a))
	require.Equal(t, http.StatusCreated, do(t, "POST", env.server.URL+"/api/companies", adminToken, map[string]string{"name": "B"}, &b))

	var inB model.Component
	require.Equal(t, http.StatusCreated, do(t, "POST", env.server.URL+"/api/components", adminToken,
		map[string]any{"name": "B cable", "qty": 2, "company_id": b.ID}, &inB))

	require.Equal(t, http.StatusCreated, do(t, "POST", env.server.URL+"/api/users", adminToken, map[string]any{
		"username":   "ana",
		"password":   "password",
		"role":       model.RoleManager,
		"company_id": a.ID,
	}, nil))
	anaToken := env.login(t, "ana")

	url := env.server.URL + "/api/components/" + itoa(inB.ID)
	assert.Equal(t, http.StatusNotFound, do(t, "GET", url, anaToken, nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, "PUT", url, anaToken, map[string]any{"name": "mine", "qty": 2}, nil))
	assert.Equal(t, http.StatusNotFound, do(t, "DELETE", url, anaToken, nil, nil))

	var list []model.Component
	require.Equal(t, http.StatusOK, do(t, "GET", env.server.URL+"/api/components", anaToken, nil, &list))
	assert.Empty(t, list)

	var own model.Component
	require.Equal(t, http.StatusCreated, do(t, "POST", env.server.URL+"/api/components", anaToken,
		map[string]any{"name": "A cable", "qty": 1}, &own))
	require.NotNil(t, own.CompanyID)
	assert.Equal(t, a.ID, *own.CompanyID)
}

func TestUsersAPI(t *testing.T) {
	env, token := setupTestServer(t)

	var created model.User
	require.Equal(t, http.StatusCreated, do(t, "POST", env.server.URL+"/api/users", token, map[string]any{
		"username": "maja",
		"password": "password",
		"role":     model.RoleUser,
	}, &created))

	assert.Equal(t, http.StatusBadRequest, do(t, "POST", env.server.URL+"/api/users", token, map[string]any{
		"username": "short",
		"password": "pw",
		"role":     model.RoleUser,
	}, nil))

	assert.Equal(t, http.StatusBadRequest, do(t, "PUT", env.server.URL+"/api/users/"+itoa(created.ID), token, map[string]any{
		"role":       model.RoleManager,
		"company_id": 999,
	}, nil))

	var updated model.User
	require.Equal(t, http.StatusOK, do(t, "PUT", env.server.URL+"/api/users/"+itoa(created.ID), token, map[string]any{
		"role": model.RoleManager,
	}, &updated))
	assert.Equal(t, model.RoleManager, updated.Role)

	require.Equal(t, http.StatusOK, do(t, "DELETE", env.server.URL+"/api/users/"+itoa(created.ID), token, nil, nil))
}
