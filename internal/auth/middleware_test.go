package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/auth"
	"ms-booking/internal/utils"
)

func TestRequireAdmin(t *testing.T) {
	handler := auth.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w, nil)
	}))

	// A non-admin caller gets 403 with the error envelope.
	req := httptest.NewRequest(http.MethodPost, "/bookings/bk_1/refund", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "usr_1"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "admin role required", resp.Message)

	// An admin passes through.
	req = httptest.NewRequest(http.MethodPost, "/bookings/bk_1/refund", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "adm_1", Roles: []string{auth.RoleAdmin}}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIdentityAdmin(t *testing.T) {
	assert.False(t, auth.Identity{UserID: "usr_1"}.Admin())
	assert.False(t, auth.Identity{UserID: "usr_1", Roles: []string{"support"}}.Admin())
	assert.True(t, auth.Identity{UserID: "adm_1", Roles: []string{"support", auth.RoleAdmin}}.Admin())
}
