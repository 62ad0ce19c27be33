package ui

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"finitefield.org/kmart-web/internal/auth"
	"finitefield.org/kmart-web/internal/backend"
	"finitefield.org/kmart-web/internal/catalog"
	"finitefield.org/kmart-web/internal/message"
)

func TestNewFlashViewReportsRemainingWindow(t *testing.T) {
	shown := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := message.Message{
		ID:        "01HX",
		Severity:  message.SeverityError,
		Text:      "All fields are required",
		ShownAt:   shown,
		ExpiresAt: shown.Add(message.DefaultWindow),
	}

	view := newFlashView(msg, shown.Add(time.Second))
	require.True(t, view.IsError)
	require.EqualValues(t, 2000, view.DismissMS)

	expired := newFlashView(msg, shown.Add(time.Minute))
	require.Zero(t, expired.DismissMS)
}

func TestProductCardsFormatPriceAndURL(t *testing.T) {
	cards := newProductCards([]catalog.Product{
		{ID: "p1", Title: "Phone", Slug: "smart phone", Price: decimal.RequireFromString("1234567.5")},
	})

	require.Len(t, cards, 1)
	require.Equal(t, "/product/smart%20phone", cards[0].URL)
	require.Equal(t, "₦ 1,234,567.5", cards[0].Price)
	require.NotNil(t, newProductCards(nil))
}

func TestAdminRowsEscapeDeleteURL(t *testing.T) {
	rows := newAdminRows([]catalog.Product{{ID: "a/b", Price: decimal.NewFromInt(5)}}, "01MOUNT")

	require.Equal(t, "/admin-dashboard/products/a%2Fb/delete?view=01MOUNT", rows[0].DeleteURL)
}

func TestFragmentURLCarriesMountAndGeneration(t *testing.T) {
	require.Equal(t, "/fragments/products?view=01MOUNT&gen=7", fragmentURL("/fragments/products", "01MOUNT", 7))
}

func TestEveryMountIsItsOwnView(t *testing.T) {
	first, second := newMount(), newMount()
	require.NotEqual(t, first, second)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NotEqual(t, viewID(r, viewHome, first), viewID(r, viewHome, second))
	require.NotEqual(t, viewID(r, viewHome, first), viewID(r, viewCategory, first))
}

func TestMountFromQuery(t *testing.T) {
	mount := newMount()
	r := httptest.NewRequest(http.MethodGet, "/fragments/products?view="+mount+"&gen=2", nil)
	require.Equal(t, mount, mountFrom(r))

	long := httptest.NewRequest(http.MethodGet, "/fragments/products?view="+strings.Repeat("A", 80), nil)
	require.Empty(t, mountFrom(long))
}

func TestLoginFailureStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		text   string
	}{
		{"blank credentials", auth.ErrCredentialsRequired, http.StatusBadRequest, "Username and password required"},
		{"server message", &backend.APIError{Kind: backend.KindServer, Status: 401, Message: "Invalid credentials"}, http.StatusUnauthorized, "Invalid credentials"},
		{"wrapped server", fmt.Errorf("login: %w", &backend.APIError{Kind: backend.KindServer, Status: 500}), http.StatusBadGateway, backend.GenericMessage},
		{"server 503 message", &backend.APIError{Kind: backend.KindServer, Status: 503, Message: "Maintenance"}, http.StatusBadGateway, "Maintenance"},
		{"network", &backend.APIError{Kind: backend.KindNetwork, Err: errors.New("refused")}, http.StatusBadGateway, backend.GenericMessage},
		{"decode", &backend.APIError{Kind: backend.KindDecode, Err: errors.New("eof")}, http.StatusBadGateway, backend.GenericMessage},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, backend.GenericMessage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, text := loginFailure(tc.err)
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.text, text)
		})
	}
}
