package controllers

import (
	"encoding/json"
	"math/big"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainshop/chainshop-api/models"
)

const testCourierHex = "0xab602Fac892e965d883691120AC9619e1168F36f"

func TestOrdersToDeliverListsUnassigned(t *testing.T) {
	server := newTestServer(t)
	_, customerToken := server.seedAccount(t, "alice@test.com", models.RoleCustomer)
	_, courierToken := server.seedAccount(t, "bob@test.com", models.RoleCourier)
	product := server.seedProduct(t, "Gadget", "50.00")

	w := server.doJSON(t, http.MethodPost, "/order", customerToken, gin.H{
		"requests": []gin.H{{"id": product.ID, "quantity": 1}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = server.doJSON(t, http.MethodGet, "/orders_to_deliver", courierToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var orders []struct {
		ID    uint   `json:"id"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Orders, &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "alice@test.com", orders[0].Email)

	// Customers cannot reach the courier surface.
	w = server.doJSON(t, http.MethodGet, "/orders_to_deliver", customerToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPickUpOrderEndpoint(t *testing.T) {
	server := newTestServer(t)
	_, customerToken := server.seedAccount(t, "alice@test.com", models.RoleCustomer)
	_, courierToken := server.seedAccount(t, "bob@test.com", models.RoleCourier)
	product := server.seedProduct(t, "Gadget", "50.00")

	w := server.doJSON(t, http.MethodPost, "/order", customerToken, gin.H{
		"requests": []gin.H{{"id": product.ID, "quantity": 2}},
		"address":  testPayerAddress,
	})
	require.Equal(t, http.StatusOK, w.Code)
	orderID := decodeEnvelope(t, w).ID

	// Unpaid escrow blocks the pickup.
	w = server.doJSON(t, http.MethodPost, "/pick_up_order", courierToken, gin.H{
		"id":      orderID,
		"address": testCourierHex,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Transfer not complete.", decodeEnvelope(t, w).Error.Message)

	var order models.Order
	require.NoError(t, server.db.First(&order, orderID).Error)
	require.NoError(t, server.adapter.Pay(common.HexToAddress(*order.ContractAddress), big.NewInt(10000)))

	w = server.doJSON(t, http.MethodPost, "/pick_up_order", courierToken, gin.H{
		"id":      orderID,
		"address": testCourierHex,
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, server.db.First(&order, orderID).Error)
	assert.Equal(t, models.OrderStatusPending, order.Status)

	// A second pickup of the same order lost the race for the transition.
	w = server.doJSON(t, http.MethodPost, "/pick_up_order", courierToken, gin.H{
		"id":      orderID,
		"address": testCourierHex,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid order id.", decodeEnvelope(t, w).Error.Message)
	assert.Equal(t, 1, server.adapter.AssignCourierCalls)
}

func TestPickUpOrderValidation(t *testing.T) {
	server := newTestServer(t)
	_, courierToken := server.seedAccount(t, "bob@test.com", models.RoleCourier)

	w := server.doJSON(t, http.MethodPost, "/pick_up_order", courierToken, gin.H{
		"address": testCourierHex,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing order id.", decodeEnvelope(t, w).Error.Message)

	w = server.doJSON(t, http.MethodPost, "/pick_up_order", courierToken, gin.H{"id": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing address.", decodeEnvelope(t, w).Error.Message)

	w = server.doJSON(t, http.MethodPost, "/pick_up_order", courierToken, gin.H{
		"id":      1,
		"address": "not-an-address",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid address.", decodeEnvelope(t, w).Error.Message)
}
