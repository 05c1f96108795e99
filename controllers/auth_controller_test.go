package controllers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainshop/chainshop-api/models"
)

func TestRegisterCustomerAndLogin(t *testing.T) {
	server := newTestServer(t)

	w := server.doJSON(t, http.MethodPost, "/register_customer", "", gin.H{
		"forename": "Alice",
		"surname":  "Smith",
		"email":    "alice@test.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeEnvelope(t, w).Success)

	var user models.User
	require.NoError(t, server.db.Where("email = ?", "alice@test.com").First(&user).Error)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.NotEqual(t, "password123", user.Password)

	w = server.doJSON(t, http.MethodPost, "/login", "", gin.H{
		"email":    "alice@test.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "accessToken")
}

func TestRegisterValidation(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name    string
		body    gin.H
		message string
	}{
		{
			"missing forename",
			gin.H{"surname": "Smith", "email": "a@test.com", "password": "password123"},
			"Field forename is missing.",
		},
		{
			"missing surname",
			gin.H{"forename": "Alice", "email": "a@test.com", "password": "password123"},
			"Field surname is missing.",
		},
		{
			"missing email",
			gin.H{"forename": "Alice", "surname": "Smith", "password": "password123"},
			"Field email is missing.",
		},
		{
			"missing password",
			gin.H{"forename": "Alice", "surname": "Smith", "email": "a@test.com"},
			"Field password is missing.",
		},
		{
			"malformed email",
			gin.H{"forename": "Alice", "surname": "Smith", "email": "not-an-email", "password": "password123"},
			"Invalid email.",
		},
		{
			"short password",
			gin.H{"forename": "Alice", "surname": "Smith", "email": "a@test.com", "password": "short"},
			"Invalid password.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := server.doJSON(t, http.MethodPost, "/register_customer", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, decodeEnvelope(t, w).Error.Message)
		})
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	server := newTestServer(t)
	server.seedAccount(t, "taken@test.com", models.RoleCustomer)

	w := server.doJSON(t, http.MethodPost, "/register_courier", "", gin.H{
		"forename": "Bob",
		"surname":  "Jones",
		"email":    "taken@test.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already exists.", decodeEnvelope(t, w).Error.Message)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	server := newTestServer(t)
	server.seedAccount(t, "alice@test.com", models.RoleCustomer)

	// Wrong password and unknown account look identical to the caller.
	w := server.doJSON(t, http.MethodPost, "/login", "", gin.H{
		"email":    "alice@test.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid credentials.", decodeEnvelope(t, w).Error.Message)

	w = server.doJSON(t, http.MethodPost, "/login", "", gin.H{
		"email":    "nobody@test.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid credentials.", decodeEnvelope(t, w).Error.Message)
}

func TestRegisterCourierGrantsCourierRole(t *testing.T) {
	server := newTestServer(t)

	w := server.doJSON(t, http.MethodPost, "/register_courier", "", gin.H{
		"forename": "Bob",
		"surname":  "Jones",
		"email":    "bob@test.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var user models.User
	require.NoError(t, server.db.Where("email = ?", "bob@test.com").First(&user).Error)
	assert.Equal(t, models.RoleCourier, user.Role)
}
