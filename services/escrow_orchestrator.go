package services

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chainshop/chainshop-api/models"
)

// OrderProductView is one materialized line of a status response.
type OrderProductView struct {
	Categories []string `json:"categories"`
	Name       string   `json:"name"`
	Price      float64  `json:"price"`
	Quantity   int      `json:"quantity"`
}

// OrderStatusView is one order in a customer status response.
type OrderStatusView struct {
	Products  []OrderProductView `json:"products"`
	Price     float64            `json:"price"`
	Status    string             `json:"status"`
	Timestamp string             `json:"timestamp"`
}

// EscrowOrchestrator sequences the order lifecycle against the escrow
// contract: create -> deploy, installment invoicing, courier pickup, delivery
// confirmation. Every transition verifies its on-chain precondition via a
// read, performs the chain write, and commits local state only if the write
// succeeded; a failed write rolls back all local mutations of the request.
type EscrowOrchestrator struct {
	ledger  *OrderLedger
	adapter EscrowAdapter
	metrics *Metrics
	log     *zap.Logger
}

// NewEscrowOrchestrator wires the state machine's collaborators.
func NewEscrowOrchestrator(ledger *OrderLedger, adapter EscrowAdapter, metrics *Metrics, log *zap.Logger) *EscrowOrchestrator {
	return &EscrowOrchestrator{
		ledger:  ledger,
		adapter: adapter,
		metrics: metrics,
		log:     log,
	}
}

// CreateOrder validates the requested lines, persists the order and, when a
// customer address was supplied, deploys its escrow contract. The order and
// its line items only survive if deployment succeeds: a deploy failure
// abandons the whole creation.
func (o *EscrowOrchestrator) CreateOrder(ctx context.Context, customerID uint, items []OrderItemRequest, customerAddress *common.Address) (uint, error) {
	lines, total, err := o.ledger.ValidateItems(items)
	if err != nil {
		return 0, err
	}

	order := models.Order{
		CustomerID: customerID,
		Price:      total,
		Status:     models.OrderStatusCreated,
		Timestamp:  time.Now().UTC(),
	}
	if customerAddress != nil {
		hex := customerAddress.Hex()
		order.CustomerAddress = &hex
	}

	err = o.ledger.WithTransaction(func(tx *gorm.DB) error {
		if err := o.ledger.InsertOrder(tx, &order, lines); err != nil {
			return err
		}
		if customerAddress == nil {
			return nil
		}

		contractAddress, err := o.adapter.Deploy(ctx, *customerAddress, order.PriceUnits())
		if err != nil {
			o.metrics.ChainFailures.WithLabelValues("deploy").Inc()
			return err
		}
		return o.ledger.SetContractAddress(tx, order.ID, contractAddress.Hex())
	})
	if err != nil {
		return 0, err
	}

	o.metrics.OrdersCreated.Inc()
	o.log.Info("order created",
		zap.Uint("order_id", order.ID),
		zap.Uint("customer_id", customerID),
		zap.String("price", total.String()),
		zap.Bool("escrow", customerAddress != nil))
	return order.ID, nil
}

// GenerateInvoice builds an unsigned payment transaction for the order. With
// no explicit amount the invoice covers the full remaining balance; an
// explicit amount must satisfy 0 < amount <= remaining. Nothing is signed or
// submitted here.
func (o *EscrowOrchestrator) GenerateInvoice(ctx context.Context, customerID uint, orderID int, payer common.Address, amount *big.Int) (*PaymentTransaction, error) {
	order, err := o.ownedOrder(customerID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.HasContract() {
		return nil, ErrPrecondition("Order has no payment contract.")
	}

	// An order created without an address gets the validated request address
	// stored on first invoice. The address is not checked against the
	// contract's constructor argument; the contract itself enforces who may
	// pay.
	if order.CustomerAddress == nil || *order.CustomerAddress == "" {
		if err := o.ledger.SetCustomerAddress(order.ID, payer.Hex()); err != nil {
			return nil, err
		}
	}

	contract := common.HexToAddress(*order.ContractAddress)

	paid, err := o.adapter.IsPaid(ctx, contract)
	if err != nil {
		o.metrics.ChainFailures.WithLabelValues("is_paid").Inc()
		return nil, err
	}
	if paid {
		return nil, ErrPrecondition("Transfer already complete.")
	}

	amountPaid, err := o.adapter.AmountPaid(ctx, contract)
	if err != nil {
		o.metrics.ChainFailures.WithLabelValues("amount_paid").Inc()
		return nil, err
	}

	remaining := new(big.Int).Sub(order.PriceUnits(), amountPaid)
	if remaining.Sign() <= 0 {
		return nil, ErrPrecondition("Transfer already complete.")
	}

	target := remaining
	if amount != nil {
		if amount.Sign() <= 0 || amount.Cmp(remaining) > 0 {
			return nil, ErrValidation("Invalid amount.")
		}
		target = amount
	}

	invoice, err := o.adapter.BuildPaymentTransaction(ctx, contract, payer, target)
	if err != nil {
		o.metrics.ChainFailures.WithLabelValues("build_payment").Inc()
		return nil, err
	}

	o.metrics.InvoicesGenerated.Inc()
	o.log.Info("invoice generated",
		zap.Uint("order_id", order.ID),
		zap.String("amount_units", target.String()),
		zap.String("remaining_units", remaining.String()))
	return invoice, nil
}

// PickUpOrder binds a courier to a paid order and moves it to PENDING. The
// conditional transition runs before the chain write inside one database
// transaction: of two concurrent pickups only one reaches assignCourier, and
// a failed chain write leaves no status mutation behind.
func (o *EscrowOrchestrator) PickUpOrder(ctx context.Context, orderID int, courier common.Address) error {
	order, err := o.loadOrder(orderID)
	if err != nil {
		return err
	}
	if order == nil || order.Status != models.OrderStatusCreated || !order.HasContract() {
		return ErrValidation("Invalid order id.")
	}

	contract := common.HexToAddress(*order.ContractAddress)

	paid, err := o.adapter.IsPaid(ctx, contract)
	if err != nil {
		o.metrics.ChainFailures.WithLabelValues("is_paid").Inc()
		return err
	}
	if !paid {
		return ErrPrecondition("Transfer not complete.")
	}

	err = o.ledger.WithTransaction(func(tx *gorm.DB) error {
		// Claim the transition first; the loser of a concurrent pickup stops
		// here and never triggers a duplicate assignCourier call.
		if err := o.ledger.Transition(tx, order.ID, models.OrderStatusCreated, models.OrderStatusPending); err != nil {
			return err
		}
		if err := o.adapter.AssignCourier(ctx, contract, courier); err != nil {
			o.metrics.ChainFailures.WithLabelValues("assign_courier").Inc()
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.metrics.OrdersPickedUp.Inc()
	o.log.Info("order picked up",
		zap.Uint("order_id", order.ID),
		zap.String("courier", courier.Hex()))
	return nil
}

// ConfirmDelivery releases the escrowed funds for a PENDING order with a
// bound courier and moves it to COMPLETE. Same rollback discipline as pickup:
// the status change only commits if the chain write succeeds.
func (o *EscrowOrchestrator) ConfirmDelivery(ctx context.Context, customerID uint, orderID int) error {
	order, err := o.ownedOrder(customerID, orderID)
	if err != nil {
		return err
	}
	if order.Status == models.OrderStatusCreated {
		return ErrPrecondition("Delivery not complete.")
	}
	if order.Status != models.OrderStatusPending || !order.HasContract() {
		return ErrValidation("Invalid order id.")
	}

	contract := common.HexToAddress(*order.ContractAddress)

	courier, err := o.adapter.CourierAddress(ctx, contract)
	if err != nil {
		o.metrics.ChainFailures.WithLabelValues("courier_address").Inc()
		return err
	}
	if courier == (common.Address{}) {
		return ErrPrecondition("Delivery not complete.")
	}

	err = o.ledger.WithTransaction(func(tx *gorm.DB) error {
		if err := o.ledger.Transition(tx, order.ID, models.OrderStatusPending, models.OrderStatusComplete); err != nil {
			return err
		}
		if err := o.adapter.ConfirmDelivery(ctx, contract); err != nil {
			o.metrics.ChainFailures.WithLabelValues("confirm_delivery").Inc()
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.metrics.OrdersDelivered.Inc()
	o.log.Info("delivery confirmed", zap.Uint("order_id", order.ID))
	return nil
}

// OrdersToDeliver lists orders still waiting for a courier.
func (o *EscrowOrchestrator) OrdersToDeliver() ([]UnassignedOrder, error) {
	return o.ledger.ListCreatedUnassigned()
}

// OrderStatuses returns the customer's orders with materialized line items,
// oldest first.
func (o *EscrowOrchestrator) OrderStatuses(customerID uint) ([]OrderStatusView, error) {
	orders, err := o.ledger.FindByCustomer(customerID)
	if err != nil {
		return nil, err
	}

	views := make([]OrderStatusView, 0, len(orders))
	for _, order := range orders {
		products := make([]OrderProductView, 0, len(order.OrderProducts))
		for _, op := range order.OrderProducts {
			categories := make([]string, 0, len(op.Product.Categories))
			for _, cat := range op.Product.Categories {
				categories = append(categories, cat.Name)
			}
			products = append(products, OrderProductView{
				Categories: categories,
				Name:       op.Product.Name,
				Price:      op.Product.Price.InexactFloat64(),
				Quantity:   op.Quantity,
			})
		}
		views = append(views, OrderStatusView{
			Products:  products,
			Price:     order.Price.InexactFloat64(),
			Status:    order.Status,
			Timestamp: order.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return views, nil
}

func (o *EscrowOrchestrator) loadOrder(orderID int) (*models.Order, error) {
	if orderID <= 0 {
		return nil, ErrValidation("Invalid order id.")
	}
	return o.ledger.FindByID(uint(orderID))
}

// ownedOrder loads an order and enforces customer ownership; anything the
// caller may not see resolves to the same "Invalid order id." validation
// error as a missing order.
func (o *EscrowOrchestrator) ownedOrder(customerID uint, orderID int) (*models.Order, error) {
	order, err := o.loadOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.CustomerID != customerID {
		return nil, ErrValidation("Invalid order id.")
	}
	return order, nil
}
