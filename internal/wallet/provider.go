// Package wallet provisions opaque external-wallet references for accounts.
package wallet

import (
	"strings"

	"github.com/google/uuid"
)

// Provider generates wallet references. The ledger never interprets them; they
// are only handed to the balance oracle.
type Provider interface {
	GenerateWalletRef() string
}

// UUIDProvider derives wallet references from random UUIDs.
type UUIDProvider struct{}

var _ Provider = UUIDProvider{}

// GenerateWalletRef returns a fresh opaque reference.
func (UUIDProvider) GenerateWalletRef() string {
	return "wlt-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// None disables wallet provisioning; accounts get no wallet reference and
// reconciliation skips them.
type None struct{}

var _ Provider = None{}

func (None) GenerateWalletRef() string { return "" }
