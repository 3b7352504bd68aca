package beneficiary

import "time"

// Beneficiary is a saved transfer destination owned by an account. The ledger
// never writes beneficiaries; an active record is a precondition for outbound
// transfers.
type Beneficiary struct {
	ID          string
	AccountID   string
	Name        string
	Destination string
	Active      bool
	CreatedAt   time.Time
}
