package ui

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"finitefield.org/kmart-web/internal/catalog"
	"finitefield.org/kmart-web/internal/observability"
	"finitefield.org/kmart-web/internal/viewstate"
)

// NotFoundPath is the page errored catalog views redirect to.
const NotFoundPath = "/404"

// Home mounts the all-products list and renders its skeleton.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	mount := newMount()
	gen := h.lists.View(viewID(r, viewHome, mount)).Load(listQuery{kind: listAll})
	h.renderPage(w, r, "home", homeView{
		layoutView:  h.layout(r),
		FragmentURL: fragmentURL("/fragments/products", mount, gen),
		Skeletons:   skeletons(SkeletonCount),
	}, http.StatusOK)
}

// ProductsFragment renders the settled all-products list.
func (h *Handlers) ProductsFragment(w http.ResponseWriter, r *http.Request) {
	id := viewID(r, viewHome, mountFrom(r))
	state, err := awaitView(r, h.lists, id, listQuery{kind: listAll})
	if !h.settled(w, r, err) {
		return
	}
	h.lists.Unmount(id)
	products, ok := state.Data()
	if !ok {
		h.redirect(w, r, NotFoundPath, http.StatusSeeOther)
		return
	}
	h.renderFragment(w, r, "product-grid", productGridView{Products: newProductCards(products)})
}

// Category mounts the list for a category slug.
func (h *Handlers) Category(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "catslug")
	title := strings.ToUpper(slug)
	if cat, ok := h.categories.BySlug(slug); ok {
		title = cat.Name
	}
	mount := newMount()
	gen := h.lists.View(viewID(r, viewCategory, mount)).Load(listQuery{kind: listCategorySlug, value: slug})
	h.renderPage(w, r, "category", categoryView{
		layoutView:  h.layout(r),
		Title:       title,
		Heading:     slug,
		FragmentURL: fragmentURL("/fragments/category/"+url.PathEscape(slug), mount, gen),
		Skeletons:   skeletons(SkeletonCount),
	}, http.StatusOK)
}

// CategoryFragment renders the settled category list.
func (h *Handlers) CategoryFragment(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "catslug")
	id := viewID(r, viewCategory, mountFrom(r))
	state, err := awaitView(r, h.lists, id, listQuery{kind: listCategorySlug, value: slug})
	if !h.settled(w, r, err) {
		return
	}
	h.lists.Unmount(id)
	products, ok := state.Data()
	if !ok {
		h.redirect(w, r, NotFoundPath, http.StatusSeeOther)
		return
	}
	h.renderFragment(w, r, "product-grid", productGridView{Products: newProductCards(products)})
}

// Product mounts the detail view for a slug.
func (h *Handlers) Product(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	mount := newMount()
	gen := h.details.View(viewID(r, viewProduct, mount)).Load(slug)
	h.renderPage(w, r, "product", productPageView{
		layoutView:  h.layout(r),
		FragmentURL: fragmentURL("/fragments/product/"+url.PathEscape(slug), mount, gen),
	}, http.StatusOK)
}

// ProductFragment renders the settled product and starts the related list
// for its category under the same mount.
func (h *Handlers) ProductFragment(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	mount := mountFrom(r)
	id := viewID(r, viewProduct, mount)
	state, err := awaitView(r, h.details, id, slug)
	if !h.settled(w, r, err) {
		return
	}
	h.details.Unmount(id)
	product, ok := state.Data()
	if !ok {
		h.redirect(w, r, NotFoundPath, http.StatusSeeOther)
		return
	}

	gen := h.lists.View(viewID(r, viewRelated, mount)).Load(listQuery{kind: listCategory, value: product.Category})
	relatedURL := fragmentURL("/fragments/related/"+url.PathEscape(product.Category), mount, gen) +
		"&exclude=" + url.QueryEscape(product.ID)
	h.renderFragment(w, r, "product-detail", newProductDetail(product, relatedURL))
}

// RelatedFragment renders up to catalog.RelatedLimit products sharing the
// category, without the product named by ?exclude.
func (h *Handlers) RelatedFragment(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	id := viewID(r, viewRelated, mountFrom(r))
	state, err := awaitView(r, h.lists, id, listQuery{kind: listCategory, value: category})
	if !h.settled(w, r, err) {
		return
	}
	h.lists.Unmount(id)
	var items []productCard
	if candidates, ok := state.Data(); ok && catalog.HasRelated(candidates) {
		current := catalog.Product{ID: r.URL.Query().Get("exclude")}
		items = newProductCards(catalog.Related(current, candidates, catalog.RelatedLimit))
	}
	h.renderFragment(w, r, "related", relatedView{Items: items})
}

// NotFound renders the not-found page.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	status := http.StatusNotFound
	if r.URL.Path == NotFoundPath {
		status = http.StatusOK
	}
	h.renderPage(w, r, "notfound", struct{ layoutView }{h.layout(r)}, status)
}

// settled reports whether the view produced a state worth rendering. Results
// of superseded or unmounted views are discarded. Public catalog views are
// unmounted once settled; the rendered fragment is all the page keeps.
func (h *Handlers) settled(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, viewstate.ErrSuperseded), errors.Is(err, viewstate.ErrUnmounted):
		discarded(w)
	case r.Context().Err() != nil:
		// Client went away.
	default:
		observability.FromContext(r.Context()).Error("view wait failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
	return false
}
