package ui

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"finitefield.org/kmart-web/internal/catalog"
	custommw "finitefield.org/kmart-web/internal/httpserver/middleware"
	"finitefield.org/kmart-web/internal/message"
)

type layoutView struct {
	CSRFToken  string
	Categories catalog.Categories
}

type flashView struct {
	ID        string
	Severity  message.Severity
	IsError   bool
	DismissMS int64
	Text      string
}

type productCard struct {
	ID    string
	URL   string
	Image string
	Title string
	Price string
}

type homeView struct {
	layoutView
	FragmentURL string
	Skeletons   []struct{}
}

type categoryView struct {
	layoutView
	Title       string
	Heading     string
	FragmentURL string
	Skeletons   []struct{}
}

type productPageView struct {
	layoutView
	FragmentURL string
}

type productGridView struct {
	Products []productCard
}

type productDetailView struct {
	ID          string
	Title       string
	Image       string
	Images      []string
	Category    string
	CategoryURL string
	Price       string
	Stock       int
	Details     string
	RelatedURL  string
}

type relatedView struct {
	Items []productCard
}

type loginView struct {
	layoutView
	Flash    *flashView
	Username string
}

type dashboardView struct {
	layoutView
	View        string
	Upload      uploadPanelView
	FragmentURL string
	Skeletons   []struct{}
}

type uploadPanelView struct {
	View           string
	Flash          *flashView
	CSRFToken      string
	Categories     catalog.Categories
	ScrollIntoView bool
}

type adminProductRow struct {
	ID        string
	Title     string
	Image     string
	Price     string
	Stock     int
	DeleteURL string
}

type adminProductsView struct {
	Products   []adminProductRow
	Error      string
	RefreshURL string
}

type deleteModalView struct {
	Title      string
	ConfirmURL string
	CSRFToken  string
}

func skeletons(n int) []struct{} {
	return make([]struct{}, n)
}

func (h *Handlers) layout(r *http.Request) layoutView {
	return layoutView{
		CSRFToken:  custommw.CSRFTokenFromContext(r.Context()),
		Categories: h.categories,
	}
}

// flash returns the message currently shown to the session, if any.
func (h *Handlers) flash(r *http.Request) *flashView {
	msg, ok := h.messages.Current(sessionID(r))
	if !ok {
		return nil
	}
	return newFlashView(msg, h.now())
}

func newFlashView(msg message.Message, now time.Time) *flashView {
	return &flashView{
		ID:        msg.ID,
		Severity:  msg.Severity,
		IsError:   msg.IsError(),
		DismissMS: msg.Remaining(now).Milliseconds(),
		Text:      msg.Text,
	}
}

func productURL(p catalog.Product) string {
	return "/product/" + url.PathEscape(p.Slug)
}

func categoryURL(catSlug string) string {
	return "/category/" + url.PathEscape(catSlug)
}

// mountURL points path at one mounted view.
func mountURL(path, mount string) string {
	return path + "?" + mountParam + "=" + url.QueryEscape(mount)
}

// fragmentURL names the generation of the mount a fragment must render.
func fragmentURL(path, mount string, gen uint64) string {
	return mountURL(path, mount) + "&gen=" + strconv.FormatUint(gen, 10)
}

func newProductCards(products []catalog.Product) []productCard {
	cards := make([]productCard, 0, len(products))
	for _, p := range products {
		cards = append(cards, productCard{
			ID:    p.ID,
			URL:   productURL(p),
			Image: p.Image,
			Title: p.Title,
			Price: p.DisplayPrice(),
		})
	}
	return cards
}

func newProductDetail(p catalog.Product, relatedURL string) productDetailView {
	return productDetailView{
		ID:          p.ID,
		Title:       p.Title,
		Image:       p.Image,
		Images:      p.Images(),
		Category:    p.Category,
		CategoryURL: categoryURL(p.CatSlug),
		Price:       p.DisplayPrice(),
		Stock:       p.Stock,
		Details:     p.Details,
		RelatedURL:  relatedURL,
	}
}

func newAdminRows(products []catalog.Product, mount string) []adminProductRow {
	rows := make([]adminProductRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, adminProductRow{
			ID:        p.ID,
			Title:     p.Title,
			Image:     p.Image,
			Price:     p.DisplayPrice(),
			Stock:     p.Stock,
			DeleteURL: mountURL(DashboardPath+"/products/"+url.PathEscape(p.ID)+"/delete", mount),
		})
	}
	return rows
}
