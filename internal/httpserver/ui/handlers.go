package ui

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"finitefield.org/kmart-web/internal/auth"
	"finitefield.org/kmart-web/internal/catalog"
	custommw "finitefield.org/kmart-web/internal/httpserver/middleware"
	"finitefield.org/kmart-web/internal/httpserver/templates"
	"finitefield.org/kmart-web/internal/message"
	"finitefield.org/kmart-web/internal/observability"
	"finitefield.org/kmart-web/internal/session"
	"finitefield.org/kmart-web/internal/upload"
	"finitefield.org/kmart-web/internal/viewstate"
)

// SkeletonCount is the number of placeholder cards a loading list renders.
const SkeletonCount = 8

const (
	viewHome      = "home"
	viewCategory  = "category"
	viewProduct   = "product"
	viewRelated   = "related"
	viewDashboard = "dashboard"
)

// Backend is the subset of the REST backend the views consume.
type Backend interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	ProductBySlug(ctx context.Context, slug string) (catalog.Product, error)
	ProductsByCategory(ctx context.Context, category string) ([]catalog.Product, error)
	ProductsByCategorySlug(ctx context.Context, catSlug string) ([]catalog.Product, error)
	UploadProduct(ctx context.Context, token string, payload catalog.UploadPayload) (string, error)
	DeleteProduct(ctx context.Context, token, id string) (string, error)
}

// Dependencies collects the collaborators of the UI handlers.
type Dependencies struct {
	Backend     Backend
	Guard       *auth.Guard
	Templates   *templates.Set
	Messages    *message.Board
	Categories  catalog.Categories
	Logger      *zap.Logger
	BaseContext context.Context
	IdleTimeout time.Duration
	UploadLimit int64
}

type listKind int

const (
	listAll listKind = iota
	listCategorySlug
	listCategory
)

// listQuery is the dependency key of a product list view.
type listQuery struct {
	kind  listKind
	value string
}

// Handlers exposes the catalog and admin pages and their htmx fragments.
type Handlers struct {
	backend     Backend
	guard       *auth.Guard
	tpl         *templates.Set
	messages    *message.Board
	categories  catalog.Categories
	logger      *zap.Logger
	uploadLimit int64
	now         func() time.Time

	lists   *viewstate.Registry[listQuery, []catalog.Product]
	details *viewstate.Registry[string, catalog.Product]
}

// NewHandlers wires the UI handler set.
func NewHandlers(deps Dependencies) *Handlers {
	if deps.Backend == nil || deps.Guard == nil || deps.Templates == nil {
		panic("ui: backend, guard and templates are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	messages := deps.Messages
	if messages == nil {
		messages = message.NewBoard()
	}
	base := deps.BaseContext
	if base == nil {
		base = context.Background()
	}
	base = observability.WithLogger(base, logger)
	limit := deps.UploadLimit
	if limit <= 0 {
		limit = upload.DefaultLimit
	}

	h := &Handlers{
		backend:     deps.Backend,
		guard:       deps.Guard,
		tpl:         deps.Templates,
		messages:    messages,
		categories:  deps.Categories,
		logger:      logger,
		uploadLimit: limit,
		now:         time.Now,
	}

	var regOpts []viewstate.RegistryOption
	if deps.IdleTimeout > 0 {
		regOpts = append(regOpts, viewstate.WithIdleTimeout(deps.IdleTimeout))
	}
	h.lists = viewstate.NewRegistry(func() *viewstate.Controller[listQuery, []catalog.Product] {
		return viewstate.New(h.fetchList,
			viewstate.WithBaseContext[listQuery, []catalog.Product](base),
			viewstate.WithErrorHook[listQuery, []catalog.Product](func(q listQuery, err error) {
				logger.Warn("product list fetch failed", zap.Int("kind", int(q.kind)), zap.String("key", q.value), zap.Error(err))
			}),
		)
	}, regOpts...)
	h.details = viewstate.NewRegistry(func() *viewstate.Controller[string, catalog.Product] {
		return viewstate.New(h.backend.ProductBySlug,
			viewstate.WithBaseContext[string, catalog.Product](base),
			viewstate.WithErrorHook[string, catalog.Product](func(slug string, err error) {
				logger.Warn("product fetch failed", zap.String("slug", slug), zap.Error(err))
			}),
		)
	}, regOpts...)
	return h
}

// Close unmounts every view and cancels pending fetches.
func (h *Handlers) Close() {
	h.lists.Close()
	h.details.Close()
}

func (h *Handlers) fetchList(ctx context.Context, q listQuery) ([]catalog.Product, error) {
	switch q.kind {
	case listCategorySlug:
		return h.backend.ProductsByCategorySlug(ctx, q.value)
	case listCategory:
		return h.backend.ProductsByCategory(ctx, q.value)
	default:
		return h.backend.ListProducts(ctx)
	}
}

func sessionFrom(r *http.Request) *session.Session {
	sess, _ := session.FromContext(r.Context())
	return sess
}

// mountParam names the mount of a page in fragment URLs and forms.
const mountParam = "view"

// newMount names one rendered page. Every page render is its own view
// instance, so two tabs of a session never share a controller.
func newMount() string {
	return ulid.Make().String()
}

// mountFrom reads the mount a fragment or form belongs to. Values that cannot
// be a mount name fold into the session's unnamed mount.
func mountFrom(r *http.Request) string {
	mount := r.FormValue(mountParam)
	if len(mount) > ulid.EncodedSize {
		return ""
	}
	return mount
}

// viewID scopes a mounted view to the browser session.
func viewID(r *http.Request, view, mount string) string {
	owner := "anonymous"
	if sess := sessionFrom(r); sess != nil {
		owner = sess.ID()
	}
	return owner + "|" + view + "|" + mount
}

func sessionID(r *http.Request) string {
	if sess := sessionFrom(r); sess != nil {
		return sess.ID()
	}
	return ""
}

func parseGeneration(r *http.Request) uint64 {
	gen, err := strconv.ParseUint(r.URL.Query().Get("gen"), 10, 64)
	if err != nil {
		return 0
	}
	return gen
}

// awaitView returns the settled state of the mounted view. A request naming a
// generation waits for exactly that generation; otherwise it joins or starts a
// load for key.
func awaitView[K comparable, T any](r *http.Request, reg *viewstate.Registry[K, T], id string, key K) (viewstate.State[T], error) {
	ctrl := reg.View(id)
	gen := parseGeneration(r)
	if gen == 0 {
		gen = ctrl.Ensure(key)
	}
	state, err := ctrl.Wait(r.Context(), gen)
	if errors.Is(err, viewstate.ErrUnknownGeneration) {
		// The view was collected since the page mounted it.
		state, err = ctrl.Wait(r.Context(), ctrl.Ensure(key))
	}
	return state, err
}

// discarded answers a fragment whose generation lost to a newer load of the
// same mount.
// htmx performs no swap on 204.
func discarded(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request, target string, status int) {
	if custommw.IsHTMXRequest(r.Context()) {
		custommw.Redirect(w, target, http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, status)
}

func (h *Handlers) renderPage(w http.ResponseWriter, r *http.Request, name string, data any, status int) {
	component, err := h.tpl.Page(name, data)
	if err != nil {
		observability.FromContext(r.Context()).Error("page lookup failed", zap.String("page", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	templ.Handler(component, templ.WithStatus(status)).ServeHTTP(w, r)
}

func (h *Handlers) renderFragment(w http.ResponseWriter, r *http.Request, name string, data any) {
	component, err := h.tpl.Fragment(name, data)
	if err != nil {
		observability.FromContext(r.Context()).Error("fragment lookup failed", zap.String("fragment", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	templ.Handler(component).ServeHTTP(w, r)
}
