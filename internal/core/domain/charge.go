// Package domain holds the charge and refund models, their state machines and
// the gateway-status vocabulary shared by every payment provider.
package domain

import "time"

type AccountType string

const (
	AccountTypeTest AccountType = "test"
	AccountTypeLive AccountType = "live"
)

// GatewayAccount is the merchant's account with a gateway. Read-only here.
type GatewayAccount struct {
	ID          int64
	GatewayName string
	Type        AccountType
	Credentials map[string]string
}

// Charge represents one attempted card payment
type Charge struct {
	ExternalID           string
	Amount               int64
	Status               ChargeStatus
	GatewayTransactionID string
	GatewayAccount       GatewayAccount
	CorporateSurcharge   int64
	Reference            string
	Description          string
	Version              int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChargeEvent records a persisted status change.
type ChargeEvent struct {
	ChargeExternalID string
	Status           ChargeStatus
	OccurredAt       time.Time
}

// NewCharge creates a charge in CREATED status.
func NewCharge(externalID string, amount int64, account GatewayAccount, reference, description string) (*Charge, error) {
	if amount <= 0 {
		return nil, NewInvalidAmountError(amount)
	}
	now := time.Now().UTC()
	return &Charge{
		ExternalID:     externalID,
		Amount:         amount,
		Status:         StatusCreated,
		GatewayAccount: account,
		Reference:      reference,
		Description:    description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// TransitionTo moves the charge to target. Re-applying the current status is a
// no-op and reports changed=false.
func (c *Charge) TransitionTo(target ChargeStatus) (bool, error) {
	if c.Status == target {
		return false, nil
	}
	if !CanTransition(c.Status, target) {
		return false, NewInvalidTransitionError(c.Status, target)
	}
	c.Status = target
	c.UpdatedAt = time.Now().UTC()
	return true, nil
}

// TotalAmount is the refundable total of the charge.
func (c *Charge) TotalAmount() int64 {
	return c.Amount + c.CorporateSurcharge
}

// Clone returns a copy safe to mutate independently.
func (c *Charge) Clone() *Charge {
	cp := *c
	if c.GatewayAccount.Credentials != nil {
		cp.GatewayAccount.Credentials = make(map[string]string, len(c.GatewayAccount.Credentials))
		for k, v := range c.GatewayAccount.Credentials {
			cp.GatewayAccount.Credentials[k] = v
		}
	}
	return &cp
}

// StatusChange is published after a transition has been persisted.
type StatusChange struct {
	ChargeExternalID string       `json:"charge_id"`
	GatewayAccountID int64        `json:"gateway_account_id"`
	From             ChargeStatus `json:"from"`
	To               ChargeStatus `json:"to"`
	OccurredAt       time.Time    `json:"occurred_at"`
}
