package testutil

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"finitefield.org/kmart-web/internal/backend"
	"finitefield.org/kmart-web/internal/catalog"
)

// Backend call names counted by FakeBackend.
const (
	CallList       = "list"
	CallBySlug     = "by_slug"
	CallByCategory = "by_category"
	CallByCatSlug  = "by_catslug"
	CallUpload     = "upload"
	CallDelete     = "delete"
	CallLogin      = "login"
	CallVerify     = "verify"
)

// FakeBackend is an in-memory stand-in for the REST backend. It implements
// every interface the server consumes and counts the calls it receives.
type FakeBackend struct {
	mu       sync.Mutex
	products []catalog.Product
	username string
	password string
	token    string
	failures map[string]error
	calls    map[string]int
	uploads  []catalog.UploadPayload
	nextID   int
}

// NewFakeBackend returns a backend holding products that accepts admin/secret
// and issues token "abc123".
func NewFakeBackend(products ...catalog.Product) *FakeBackend {
	return &FakeBackend{
		products: append([]catalog.Product(nil), products...),
		username: "admin",
		password: "secret",
		token:    "abc123",
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// Fail makes every later call named call return err. A nil err clears it.
func (f *FakeBackend) Fail(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, call)
		return
	}
	f.failures[call] = err
}

// Calls returns how often call was made.
func (f *FakeBackend) Calls(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[call]
}

// TotalCalls returns the number of backend calls of any kind.
func (f *FakeBackend) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// Uploads returns the payloads the backend accepted.
func (f *FakeBackend) Uploads() []catalog.UploadPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]catalog.UploadPayload(nil), f.uploads...)
}

// Products returns the current catalog.
func (f *FakeBackend) Products() []catalog.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]catalog.Product(nil), f.products...)
}

func (f *FakeBackend) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[call]++
	return f.failures[call]
}

func unauthorized() error {
	return &backend.APIError{Kind: backend.KindServer, Status: http.StatusUnauthorized, Message: "Unauthorized"}
}

func (f *FakeBackend) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	if err := f.record(CallList); err != nil {
		return nil, err
	}
	return f.Products(), nil
}

func (f *FakeBackend) ProductBySlug(ctx context.Context, slug string) (catalog.Product, error) {
	if err := f.record(CallBySlug); err != nil {
		return catalog.Product{}, err
	}
	for _, p := range f.Products() {
		if p.Slug == slug {
			return p, nil
		}
	}
	return catalog.Product{}, &backend.APIError{Kind: backend.KindServer, Status: http.StatusNotFound, Message: "Product not found"}
}

func (f *FakeBackend) ProductsByCategory(ctx context.Context, category string) ([]catalog.Product, error) {
	if err := f.record(CallByCategory); err != nil {
		return nil, err
	}
	out := []catalog.Product{}
	for _, p := range f.Products() {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *FakeBackend) ProductsByCategorySlug(ctx context.Context, catSlug string) ([]catalog.Product, error) {
	if err := f.record(CallByCatSlug); err != nil {
		return nil, err
	}
	out := []catalog.Product{}
	for _, p := range f.Products() {
		if p.CatSlug == catSlug {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *FakeBackend) UploadProduct(ctx context.Context, token string, payload catalog.UploadPayload) (string, error) {
	if err := f.record(CallUpload); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if token != f.token {
		return "", unauthorized()
	}
	price, err := decimal.NewFromString(payload.Price.String())
	if err != nil {
		return "", &backend.APIError{Kind: backend.KindServer, Status: http.StatusBadRequest, Message: "Invalid price"}
	}
	f.nextID++
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(payload.Title), " ", "-"))
	f.products = append(f.products, catalog.Product{
		ID:        fmt.Sprintf("new%d", f.nextID),
		Title:     payload.Title,
		Price:     price,
		Stock:     int(payload.Stock),
		Category:  payload.Category,
		Details:   payload.Details,
		Image:     payload.Image,
		SubImage1: payload.SubImage1,
		SubImage2: payload.SubImage2,
		SubImage3: payload.SubImage3,
		Slug:      slug,
	})
	f.uploads = append(f.uploads, payload)
	return "Product uploaded", nil
}

func (f *FakeBackend) DeleteProduct(ctx context.Context, token, id string) (string, error) {
	if err := f.record(CallDelete); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if token != f.token {
		return "", unauthorized()
	}
	for i, p := range f.products {
		if p.ID == id {
			f.products = append(f.products[:i], f.products[i+1:]...)
			return "Product deleted", nil
		}
	}
	return "", &backend.APIError{Kind: backend.KindServer, Status: http.StatusNotFound, Message: "Product not found"}
}

func (f *FakeBackend) Login(ctx context.Context, username, password string) (backend.LoginResult, error) {
	if err := f.record(CallLogin); err != nil {
		return backend.LoginResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if username != f.username || password != f.password {
		return backend.LoginResult{}, &backend.APIError{Kind: backend.KindServer, Status: http.StatusUnauthorized, Message: "Invalid credentials"}
	}
	return backend.LoginResult{Message: "Login successful", Token: f.token}, nil
}

func (f *FakeBackend) Verify(ctx context.Context, token string) error {
	if err := f.record(CallVerify); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if token != f.token {
		return unauthorized()
	}
	return nil
}
