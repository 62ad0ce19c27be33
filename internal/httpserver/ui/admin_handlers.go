package ui

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"finitefield.org/kmart-web/internal/auth"
	"finitefield.org/kmart-web/internal/backend"
	"finitefield.org/kmart-web/internal/catalog"
	custommw "finitefield.org/kmart-web/internal/httpserver/middleware"
	"finitefield.org/kmart-web/internal/observability"
	"finitefield.org/kmart-web/internal/upload"
)

const (
	// LoginPath serves the admin login form.
	LoginPath = "/admin"
	// DashboardPath serves the admin dashboard.
	DashboardPath = "/admin-dashboard"

	// HXTriggerRefresh is the htmx event that reloads the dashboard list.
	HXTriggerRefresh = "products:refresh"

	defaultLoginMessage  = "Login successful"
	defaultUploadMessage = "Product uploaded successfully"
	defaultDeleteMessage = "Product deleted successfully"
)

// LoginForm renders the login form. A session that already holds a token
// goes straight to the dashboard.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	if sess := sessionFrom(r); sess != nil && strings.TrimSpace(sess.Token()) != "" {
		http.Redirect(w, r, DashboardPath, http.StatusFound)
		return
	}
	h.renderLogin(w, r, "", http.StatusOK)
}

// LoginSubmit exchanges the submitted credentials for a token.
func (h *Handlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if sess == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	creds := auth.Credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}

	outcome, err := h.guard.Login(r.Context(), sess, creds)
	if err != nil {
		status, text := loginFailure(err)
		observability.FromContext(r.Context()).Info("admin login failed", zap.Int("status", status), zap.Error(err))
		h.messages.Error(sess.ID(), text)
		h.renderLogin(w, r, strings.TrimSpace(creds.Username), status)
		return
	}

	text := outcome.Message
	if text == "" {
		text = defaultLoginMessage
	}
	h.messages.Success(sess.ID(), text)
	h.redirect(w, r, DashboardPath, http.StatusSeeOther)
}

func loginFailure(err error) (int, string) {
	if errors.Is(err, auth.ErrCredentialsRequired) {
		return http.StatusBadRequest, err.Error()
	}
	apiErr, ok := backend.AsAPIError(err)
	if !ok {
		return http.StatusInternalServerError, backend.GenericMessage
	}
	switch {
	case apiErr.Kind == backend.KindServer && apiErr.Status >= http.StatusInternalServerError:
		return http.StatusBadGateway, backend.UserMessage(err)
	case apiErr.Kind == backend.KindServer:
		return http.StatusUnauthorized, backend.UserMessage(err)
	default:
		return http.StatusBadGateway, backend.GenericMessage
	}
}

func (h *Handlers) renderLogin(w http.ResponseWriter, r *http.Request, username string, status int) {
	h.renderPage(w, r, "login", loginView{
		layoutView: h.layout(r),
		Flash:      h.flash(r),
		Username:   username,
	}, status)
}

// Logout forgets the token and the dashboard view the form was posted from.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sess := sessionFrom(r); sess != nil {
		h.guard.Logout(sess)
	}
	h.lists.Unmount(viewID(r, viewDashboard, mountFrom(r)))
	h.redirect(w, r, LoginPath, http.StatusSeeOther)
}

// Dashboard verifies the stored token while the product list loads. Without
// a token the browser is sent to the login form before anything is fetched.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if sess == nil || strings.TrimSpace(sess.Token()) == "" {
		http.Redirect(w, r, LoginPath, http.StatusFound)
		return
	}

	mount := newMount()
	id := viewID(r, viewDashboard, mount)
	pending := h.guard.Start(r.Context(), sess)
	gen := h.lists.View(id).Load(listQuery{kind: listAll})

	if decision := pending.Wait(r.Context()); !decision.Allowed {
		h.lists.Unmount(id)
		http.Redirect(w, r, LoginPath, http.StatusFound)
		return
	}

	csrf := custommw.CSRFTokenFromContext(r.Context())
	h.renderPage(w, r, "dashboard", dashboardView{
		layoutView: h.layout(r),
		View:       mount,
		Upload: uploadPanelView{
			View:       mount,
			Flash:      h.flash(r),
			CSRFToken:  csrf,
			Categories: h.categories,
		},
		FragmentURL: fragmentURL(DashboardPath+"/fragments/products", mount, gen),
		Skeletons:   skeletons(SkeletonCount),
	}, http.StatusOK)
}

// AdminProductsFragment renders the dashboard product table body. A failed
// fetch is reported inline. The dashboard view stays mounted so deletes and
// refreshes can read it.
func (h *Handlers) AdminProductsFragment(w http.ResponseWriter, r *http.Request) {
	mount := mountFrom(r)
	state, err := awaitView(r, h.lists, viewID(r, viewDashboard, mount), listQuery{kind: listAll})
	if !h.settled(w, r, err) {
		return
	}
	view := adminProductsView{RefreshURL: mountURL(DashboardPath+"/fragments/products", mount)}
	if products, ok := state.Data(); ok {
		view.Products = newAdminRows(products, mount)
	} else {
		view.Error = backend.UserMessage(state.Err())
	}
	h.renderFragment(w, r, "admin-products", view)
}

// Upload validates the draft, converts the submitted images and creates the
// product. The outcome is shown as a transient message on the upload panel.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if sess == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	logger := observability.FromContext(r.Context())

	if err := r.ParseMultipartForm(h.uploadLimit * int64(len(catalog.ImageFields)+1)); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		logger.Warn("upload form parse failed", zap.Error(err))
	}

	mount := mountFrom(r)
	if text, ok := h.uploadProduct(r, sess.Token()); ok {
		h.messages.Success(sess.ID(), text)
		h.reloadDashboard(r, mount)
		custommw.Trigger(w, HXTriggerRefresh)
	} else {
		h.messages.Error(sess.ID(), text)
	}

	if !custommw.IsHTMXRequest(r.Context()) {
		http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
		return
	}
	h.renderFragment(w, r, "upload-panel", uploadPanelView{
		View:           mount,
		Flash:          h.flash(r),
		CSRFToken:      custommw.CSRFTokenFromContext(r.Context()),
		Categories:     h.categories,
		ScrollIntoView: true,
	})
}

// uploadProduct returns the message to show and whether the backend created
// the product.
func (h *Handlers) uploadProduct(r *http.Request, token string) (string, bool) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	// Validate against the attached file names first so a missing field wins
	// over a bad image.
	attached := upload.Attached(r.MultipartForm, catalog.ImageFields...)
	draft := catalog.UploadDraft{
		Title:     r.FormValue("title"),
		Price:     r.FormValue("price"),
		Stock:     r.FormValue("stock"),
		Category:  r.FormValue("category"),
		Details:   r.FormValue("details"),
		Image:     attached["image"],
		SubImage1: attached["subimage1"],
		SubImage2: attached["subimage2"],
		SubImage3: attached["subimage3"],
	}
	draft.Normalize()
	if err := draft.Validate(h.categories); err != nil {
		return err.Error(), false
	}

	images, err := upload.EncodeFields(ctx, r.MultipartForm, h.uploadLimit, catalog.ImageFields...)
	if err != nil {
		logger.Info("upload image rejected", zap.Error(err))
		return h.imageFailure(err), false
	}
	draft.Image = images["image"]
	draft.SubImage1 = images["subimage1"]
	draft.SubImage2 = images["subimage2"]
	draft.SubImage3 = images["subimage3"]

	payload, err := draft.Payload()
	if err != nil {
		return err.Error(), false
	}

	text, err := h.backend.UploadProduct(ctx, token, payload)
	if err != nil {
		logger.Warn("product upload failed", zap.String("title", draft.Title), zap.Error(err))
		return backend.UserMessage(err), false
	}
	if text == "" {
		text = defaultUploadMessage
	}
	logger.Info("product uploaded", zap.String("title", draft.Title))
	return text, true
}

func (h *Handlers) imageFailure(err error) string {
	switch {
	case errors.Is(err, upload.ErrTooLarge):
		return fmt.Sprintf("Images must be %d MB or smaller", h.uploadLimit>>20)
	case errors.Is(err, upload.ErrNotImage):
		return "Only image files can be uploaded"
	default:
		return backend.GenericMessage
	}
}

// DeleteModal renders the confirmation step of a delete.
func (h *Handlers) DeleteModal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mount := mountFrom(r)
	view := deleteModalView{
		ConfirmURL: mountURL(DashboardPath+"/products/"+url.PathEscape(id)+"/delete", mount),
		CSRFToken:  custommw.CSRFTokenFromContext(r.Context()),
	}
	if ctrl, ok := h.lists.Lookup(viewID(r, viewDashboard, mount)); ok {
		if products, ok := ctrl.State().Data(); ok {
			for _, p := range products {
				if p.ID == id {
					view.Title = p.Title
					break
				}
			}
		}
	}
	h.renderFragment(w, r, "delete-modal", view)
}

// DeleteConfirm deletes the product and reloads the dashboard list. A failed
// delete is logged and leaves the list untouched.
func (h *Handlers) DeleteConfirm(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if sess == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	id := chi.URLParam(r, "id")
	logger := observability.FromContext(r.Context())

	text, err := h.backend.DeleteProduct(r.Context(), sess.Token(), id)
	if err != nil {
		logger.Warn("product delete failed", zap.String("product_id", id), zap.Error(err))
	} else {
		if text == "" {
			text = defaultDeleteMessage
		}
		logger.Info("product deleted", zap.String("product_id", id), zap.String("message", text))
		h.reloadDashboard(r, mountFrom(r))
		custommw.Trigger(w, HXTriggerRefresh)
	}

	if !custommw.IsHTMXRequest(r.Context()) {
		http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
		return
	}
	// An empty body closes the modal.
	w.WriteHeader(http.StatusOK)
}

// reloadDashboard refetches the list of the dashboard mount a write came
// from. A mount that is gone loads afresh on its next refresh.
func (h *Handlers) reloadDashboard(r *http.Request, mount string) {
	if ctrl, ok := h.lists.Lookup(viewID(r, viewDashboard, mount)); ok {
		ctrl.Reload()
	}
}
