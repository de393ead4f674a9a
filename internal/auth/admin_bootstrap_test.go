package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/coinclicker/internal/memstore"
	"github.com/sudo-init-do/coinclicker/internal/reward"
)

func TestBootstrap(t *testing.T) {
	store := memstore.NewAccounts()
	_, err := store.Create(context.Background(), reward.Account{ID: "acc-1", ReferralCode: "CODE0001"})
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)

	post := func(b *Bootstrap, body string) int {
		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/admin/bootstrap", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		require.NoError(t, b.Handle(e.NewContext(req, rec)))
		return rec.Code
	}

	disabled := &Bootstrap{Store: store, Log: log}
	assert.Equal(t, http.StatusForbidden, post(disabled, `{"account_id":"acc-1","secret":"x"}`))

	b := &Bootstrap{Secret: "s3cret", Store: store, Log: log}
	assert.Equal(t, http.StatusForbidden, post(b, `{"account_id":"acc-1","secret":"wrong"}`))
	assert.Equal(t, http.StatusBadRequest, post(b, `{"secret":"s3cret"}`))
	assert.Equal(t, http.StatusNotFound, post(b, `{"account_id":"ghost","secret":"s3cret"}`))
	assert.Equal(t, http.StatusOK, post(b, `{"account_id":"acc-1","secret":"s3cret"}`))

	ok, err := store.HasRole(context.Background(), "acc-1", RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)
}
