package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/service"
)

type fakeAdminRepo struct{ admins map[string]*model.Admin }

func (f *fakeAdminRepo) Create(_ context.Context, a *model.Admin) error {
	a.ID = uuid.New()
	f.admins[a.Username] = a
	return nil
}
func (f *fakeAdminRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Admin, error) {
	for _, a := range f.admins {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}
func (f *fakeAdminRepo) GetByUsername(_ context.Context, username string) (*model.Admin, error) {
	return f.admins[username], nil
}
func (f *fakeAdminRepo) UpdatePassword(context.Context, uuid.UUID, string) error { return nil }

type fakeProductRepo struct{ products map[uuid.UUID]*model.Product }

func (f *fakeProductRepo) Create(_ context.Context, p *model.Product) error {
	p.ID = uuid.New()
	f.products[p.ID] = p
	return nil
}
func (f *fakeProductRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	return f.products[id], nil
}
func (f *fakeProductRepo) GetVariant(context.Context, uuid.UUID) (*model.ProductVariant, error) {
	return nil, nil
}
func (f *fakeProductRepo) List(context.Context, model.ProductFilter) ([]model.Product, int, error) {
	var out []model.Product
	for _, p := range f.products {
		out = append(out, *p)
	}
	return out, len(out), nil
}
func (f *fakeProductRepo) Update(_ context.Context, p *model.Product) error {
	f.products[p.ID] = p
	return nil
}
func (f *fakeProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.products[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.products, id)
	return nil
}
func (f *fakeProductRepo) FindSKUOwners(_ context.Context, sku string) ([]model.SKUOwner, error) {
	var owners []model.SKUOwner
	for _, p := range f.products {
		if p.SKU == sku {
			owners = append(owners, model.SKUOwner{ProductID: p.ID})
		}
	}
	return owners, nil
}

type fakeCartRepo struct{ carts map[string][]model.CartItem }

func (f *fakeCartRepo) Load(_ context.Context, token string) ([]model.CartItem, error) {
	return append([]model.CartItem(nil), f.carts[token]...), nil
}
func (f *fakeCartRepo) Save(_ context.Context, token string, items []model.CartItem) error {
	f.carts[token] = items
	return nil
}
func (f *fakeCartRepo) Delete(_ context.Context, token string) error {
	delete(f.carts, token)
	return nil
}

type fakeOrderRepo struct{ orders map[uuid.UUID]*model.Order }

func (f *fakeOrderRepo) Create(_ context.Context, o *model.Order) error {
	o.ID = uuid.New()
	f.orders[o.ID] = o
	return nil
}
func (f *fakeOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	return f.orders[id], nil
}
func (f *fakeOrderRepo) List(context.Context, model.OrderStatus, int, int) ([]model.Order, int, error) {
	return nil, 0, nil
}
func (f *fakeOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.OrderStatus) error {
	o, ok := f.orders[id]
	if !ok || o.Status != from {
		return pgx.ErrNoRows
	}
	o.Status = to
	return nil
}

type fakeInventoryRepo struct{}

func (fakeInventoryRepo) ApplyOrder(context.Context, uuid.UUID, *uuid.UUID) (bool, error) {
	return true, nil
}
func (fakeInventoryRepo) Adjust(context.Context, *model.InventoryUpdateLog) (int, error) {
	return 0, nil
}
func (fakeInventoryRepo) ListLogs(context.Context, uuid.UUID, int) ([]model.InventoryUpdateLog, error) {
	return nil, nil
}

type fakeSettingsRepo struct{}

func (fakeSettingsRepo) Get(context.Context, string, any) (bool, error) { return false, nil }
func (fakeSettingsRepo) Put(context.Context, string, any) error         { return nil }

type testApp struct {
	router   *gin.Engine
	admins   *fakeAdminRepo
	products *fakeProductRepo
	carts    *fakeCartRepo
	orders   *fakeOrderRepo
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	admins := &fakeAdminRepo{admins: map[string]*model.Admin{
		"root": {ID: uuid.New(), Username: "root", PasswordHash: string(hashed), Role: service.RoleAdmin},
	}}
	products := &fakeProductRepo{products: map[uuid.UUID]*model.Product{}}
	carts := &fakeCartRepo{carts: map[string][]model.CartItem{}}
	orders := &fakeOrderRepo{orders: map[uuid.UUID]*model.Order{}}

	authSvc := service.NewAuthService(admins, "test-secret", time.Hour)
	productSvc := service.NewProductService(products, nil, log)
	cartSvc := service.NewCartService(carts, products)
	inventorySvc := service.NewInventoryService(fakeInventoryRepo{}, nil, log)
	orderSvc := service.NewOrderService(orders, cartSvc, inventorySvc, nil, log)
	settingsSvc := service.NewSettingsService(fakeSettingsRepo{})

	cartH := NewCartHandler(cartSvc, 7*24*time.Hour, false)
	router, err := NewRouter(log, authSvc, nil, Handlers{
		Auth:         NewAuthHandler(authSvc, false),
		Cart:         cartH,
		Product:      NewProductHandler(productSvc, log),
		AdminProduct: NewAdminProductHandler(productSvc, inventorySvc),
		Order:        NewOrderHandler(orderSvc, cartH),
		Settings:     NewSettingsHandler(settingsSvc, nil),
	})
	require.NoError(t, err)
	return &testApp{router: router, admins: admins, products: products, carts: carts, orders: orders}
}

func (a *testApp) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) login(t *testing.T) *http.Cookie {
	t.Helper()
	rec := a.do(http.MethodPost, "/auth", map[string]string{"username": "root", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	c := findCookie(rec, "admin_token")
	require.NotNil(t, c)
	return c
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestLogin_WrongPassword(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/auth", map[string]string{"username": "root", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, findCookie(rec, "admin_token"))
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Invalid credentials", body["error"])
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	app := newTestApp(t)

	cookie := app.login(t)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, 3600, cookie.MaxAge)

	rec := app.do(http.MethodGet, "/auth", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "root", user["username"])

	rec = app.do(http.MethodDelete, "/auth", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully", decode(t, rec)["message"])
}

func TestMe_DeletedAdmin(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t)

	delete(app.admins.admins, "root")

	rec := app.do(http.MethodGet, "/auth", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decode(t, rec)["error"])
}

func TestAdminRoutes_RequireSession(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/admin/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "No token found", decode(t, rec)["error"])

	rec = app.do(http.MethodGet, "/admin/orders", nil, &http.Cookie{Name: "admin_token", Value: "forged"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decode(t, rec)["error"])

	rec = app.do(http.MethodGet, "/auth", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "No token found", decode(t, rec)["error"])
}

func TestCart_AddUpdateRemove(t *testing.T) {
	app := newTestApp(t)
	mug := &model.Product{Name: "Mug", SKU: "MUG-1", Price: decimal.RequireFromString("9.99"),
		Inventory: model.Inventory{Status: model.InventoryInStock}}
	require.NoError(t, app.products.Create(context.Background(), mug))

	rec := app.do(http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["items"])

	rec = app.do(http.MethodPost, "/cart", map[string]any{"id": mug.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	cartCookie := findCookie(rec, CartCookie)
	require.NotNil(t, cartCookie)
	assert.Len(t, app.carts.carts[cartCookie.Value], 1)

	rec = app.do(http.MethodPatch, "/cart/"+uuid.NewString(), map[string]any{"quantity": 1}, cartCookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "item not found", decode(t, rec)["error"])

	rec = app.do(http.MethodPatch, "/cart/"+mug.ID.String(), map[string]any{}, cartCookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodPatch, "/cart/"+mug.ID.String(), map[string]any{"quantity": 0}, cartCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["items"])
	assert.Empty(t, app.carts.carts[cartCookie.Value])
}

func TestCheckout(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/checkout", map[string]string{"name": "Ann", "email": "ann@example.com", "address": "1 Main St"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cart is empty", decode(t, rec)["error"])

	token := uuid.NewString()
	id := uuid.New()
	app.carts.carts[token] = []model.CartItem{{ID: id, ProductID: id, Name: "Mug", Price: decimal.NewFromInt(5), Quantity: 2}}
	cartCookie := &http.Cookie{Name: CartCookie, Value: token}

	rec = app.do(http.MethodPost, "/checkout", map[string]string{"name": "Ann", "email": "", "address": "1 Main St"}, cartCookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing customer information", decode(t, rec)["error"])
	assert.Empty(t, app.orders.orders)

	rec = app.do(http.MethodPost, "/checkout", map[string]string{"name": "Ann", "email": "ann@example.com", "address": "1 Main St"}, cartCookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Regexp(t, `^ORD-`, body["reference"])
	assert.Len(t, app.orders.orders, 1)
	assert.NotContains(t, app.carts.carts, token)
	cleared := findCookie(rec, CartCookie)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestCheckout_EmptyBody(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/checkout", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cart is empty", decode(t, rec)["error"])

	token := uuid.NewString()
	id := uuid.New()
	app.carts.carts[token] = []model.CartItem{{ID: id, ProductID: id, Name: "Mug", Price: decimal.NewFromInt(5), Quantity: 1}}

	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewReader([]byte("{broken")))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: CartCookie, Value: token})
	rec = httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing customer information", decode(t, rec)["error"])
	assert.Empty(t, app.orders.orders)
}

func TestAdminProducts_CheckSKUAndCreate(t *testing.T) {
	app := newTestApp(t)
	session := app.login(t)
	existing := &model.Product{Name: "Mug", SKU: "ABC123"}
	require.NoError(t, app.products.Create(context.Background(), existing))

	rec := app.do(http.MethodGet, "/admin/products/check-sku?sku=ABC123", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["isUnique"])

	rec = app.do(http.MethodGet, "/admin/products/check-sku?sku=ABC123&productId="+existing.ID.String(), nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["isUnique"])

	rec = app.do(http.MethodPost, "/admin/products", map[string]any{"name": "Bowl", "price": "4.50", "sku": "bad sku"}, session)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodPost, "/admin/products", map[string]any{"name": "Bowl", "price": "4.50", "sku": "ABC123"}, session)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(http.MethodPost, "/admin/products", map[string]any{
		"name": "Bowl", "price": "4.50", "sku": "BOWL-1", "inventory": map[string]any{"quantity": 3},
	}, session)
	require.Equal(t, http.StatusCreated, rec.Code)
	product := decode(t, rec)["product"].(map[string]any)
	assert.Equal(t, "Bowl", product["name"])
}

func TestProducts_GetByQueryID(t *testing.T) {
	app := newTestApp(t)
	mug := &model.Product{Name: "Mug", SKU: "MUG-1", Inventory: model.Inventory{Status: model.InventoryInStock}}
	require.NoError(t, app.products.Create(context.Background(), mug))

	rec := app.do(http.MethodGet, "/products?id="+mug.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mug", decode(t, rec)["product"].(map[string]any)["name"])

	rec = app.do(http.MethodGet, "/products/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(http.MethodGet, "/products?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRevalidate(t *testing.T) {
	app := newTestApp(t)
	session := app.login(t)

	rec := app.do(http.MethodPost, "/revalidate", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["revalidated"])
	assert.Equal(t, "products", body["cache"])
	assert.NotZero(t, body["now"])
}
