package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/chainshop/chainshop-api/services"
	"github.com/chainshop/chainshop-api/utils"
)

// CourierController handles the courier-facing surface: listing deliverable
// orders and picking them up.
type CourierController struct {
	db           *gorm.DB
	orchestrator *services.EscrowOrchestrator
}

// NewCourierController wires the controller's dependencies.
func NewCourierController(db *gorm.DB, orchestrator *services.EscrowOrchestrator) *CourierController {
	return &CourierController{db: db, orchestrator: orchestrator}
}

// OrdersToDeliver handles GET /orders_to_deliver - every order not yet
// picked up, with the owning customer's email.
func (cc *CourierController) OrdersToDeliver(c *gin.Context) {
	orders, err := cc.orchestrator.OrdersToDeliver()
	if err != nil {
		respondMessage(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list orders.")
		return
	}

	respondOK(c, gin.H{"orders": orders})
}

type pickupPayload struct {
	ID      *int    `json:"id"`
	Address *string `json:"address"`
}

// PickUpOrder handles POST /pick_up_order - binds the courier to the escrow
// contract and moves the order to PENDING. The assignment transaction is paid
// for by the system account, not the courier.
func (cc *CourierController) PickUpOrder(c *gin.Context) {
	if _, ok := currentUser(c, cc.db); !ok {
		return
	}

	var payload pickupPayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.ID == nil {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Missing order id.")
		return
	}

	if payload.Address == nil || strings.TrimSpace(*payload.Address) == "" {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Missing address.")
		return
	}
	courier, valid := utils.ParseAddress(*payload.Address)
	if !valid {
		respondMessage(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid address.")
		return
	}

	if err := cc.orchestrator.PickUpOrder(c.Request.Context(), *payload.ID, courier); err != nil {
		respondDomainError(c, err)
		return
	}

	respondOK(c, nil)
}
