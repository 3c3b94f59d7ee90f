package model

import (
	"encoding/json"
	"time"
)

// User is the single persisted entity: one record per token-sale account.
// Field names are shared across all three substrates (bson for the document
// backend, db for the relational backend, json for the file backend and the
// API surface).
type User struct {
	ID                string         `db:"id" json:"id" bson:"id"`
	AccountID         string         `db:"account_id" json:"account_id" bson:"account_id"`
	PasswordHash      string         `db:"password_hash" json:"password_hash,omitempty" bson:"password_hash,omitempty"`
	DisplayName       string         `db:"display_name" json:"display_name" bson:"display_name"`
	Email             string         `db:"email" json:"email" bson:"email"`
	MessagingHandle   string         `db:"messaging_handle" json:"messaging_handle" bson:"messaging_handle"`
	Phone             string         `db:"phone" json:"phone" bson:"phone"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at" bson:"created_at"`
	SessionToken      string         `db:"session_token" json:"session_token,omitempty" bson:"session_token"`
	PurchasedPackages PackageList    `db:"purchased_packages" json:"purchased_packages" bson:"purchased_packages"`
	ActivePackage     string         `db:"active_package" json:"active_package" bson:"active_package"`
	ResetToken        string         `db:"reset_token" json:"reset_token,omitempty" bson:"reset_token,omitempty"`
	ResetExpires      *time.Time     `db:"reset_expires" json:"reset_expires,omitempty" bson:"reset_expires,omitempty"`
	Balance           float64        `db:"balance" json:"balance" bson:"balance"`
	Withdrawals       []Withdrawal   `db:"withdrawals" json:"withdrawals" bson:"withdrawals"`
	WalletAddress     string         `db:"wallet_address" json:"wallet_address,omitempty" bson:"wallet_address,omitempty"`
	Stake             map[string]any `db:"stake" json:"stake,omitempty" bson:"stake,omitempty"`
}

// Withdrawal is a client-simulated payout request. The server persists these
// verbatim and never settles them.
type Withdrawal struct {
	Amount      float64   `json:"amount" bson:"amount"`
	Wallet      string    `json:"wallet" bson:"wallet"`
	RequestedAt time.Time `json:"requested_at" bson:"requested_at"`
	Status      string    `json:"status" bson:"status"`
}

// NoActivePackage is the active_package value for accounts that never bought
// a package.
const NoActivePackage = "0"

func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// HasValidReset reports whether a reset token is pending and unexpired at
// the given instant. Expired tokens are treated as absent (lazy expiry,
// no sweep process).
func (u *User) HasValidReset(now time.Time) bool {
	return u.ResetToken != "" && u.ResetExpires != nil && now.Before(*u.ResetExpires)
}

// PackageList is the canonical in-memory form of purchased_packages. Some
// substrates persist it as a JSON-stringified array; UnmarshalJSON accepts
// either representation.
type PackageList []string

func (p *PackageList) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err == nil {
		*p = ids
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*p = PackageList{}
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return err
	}
	*p = ids
	return nil
}

func (p PackageList) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(p))
}

// PublicUser is the projection returned by register and login. It never
// carries credentials.
type PublicUser struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

// ProfileUser is the authenticated self-view.
type ProfileUser struct {
	ID                string      `json:"id"`
	AccountID         string      `json:"account_id"`
	Name              string      `json:"name"`
	Email             string      `json:"email"`
	MessagingHandle   string      `json:"messaging_handle"`
	Phone             string      `json:"phone"`
	CreatedAt         time.Time   `json:"created_at"`
	PurchasedPackages PackageList `json:"purchased_packages"`
	ActivePackage     string      `json:"active_package"`
}

// ListedUser is the admin listing row: balances and packages, never a hash.
type ListedUser struct {
	ID                string       `json:"id"`
	AccountID         string       `json:"account_id"`
	Name              string       `json:"name"`
	Email             string       `json:"email"`
	Balance           float64      `json:"balance"`
	PurchasedPackages PackageList  `json:"purchased_packages"`
	ActivePackage     string       `json:"active_package"`
	Withdrawals       []Withdrawal `json:"withdrawals"`
}

// DetailUser is the by-account lookup projection; adds wallet, balance and
// stake for the dashboard but still no credentials.
type DetailUser struct {
	ID                string         `json:"id"`
	AccountID         string         `json:"account_id"`
	Name              string         `json:"name"`
	Email             string         `json:"email"`
	MessagingHandle   string         `json:"messaging_handle"`
	Phone             string         `json:"phone"`
	CreatedAt         time.Time      `json:"created_at"`
	PurchasedPackages PackageList    `json:"purchased_packages"`
	ActivePackage     string         `json:"active_package"`
	WalletAddress     string         `json:"wallet_address,omitempty"`
	Balance           float64        `json:"balance"`
	Stake             map[string]any `json:"stake,omitempty"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		AccountID: u.AccountID,
		Name:      u.DisplayName,
		Email:     u.Email,
	}
}

func (u *User) Profile() ProfileUser {
	return ProfileUser{
		ID:                u.ID,
		AccountID:         u.AccountID,
		Name:              u.DisplayName,
		Email:             u.Email,
		MessagingHandle:   u.MessagingHandle,
		Phone:             u.Phone,
		CreatedAt:         u.CreatedAt,
		PurchasedPackages: u.PurchasedPackages.orEmpty(),
		ActivePackage:     u.activePackageOrDefault(),
	}
}

func (u *User) Listed() ListedUser {
	withdrawals := u.Withdrawals
	if withdrawals == nil {
		withdrawals = []Withdrawal{}
	}
	return ListedUser{
		ID:                u.ID,
		AccountID:         u.AccountID,
		Name:              u.DisplayName,
		Email:             u.Email,
		Balance:           u.Balance,
		PurchasedPackages: u.PurchasedPackages.orEmpty(),
		ActivePackage:     u.activePackageOrDefault(),
		Withdrawals:       withdrawals,
	}
}

func (u *User) Detail() DetailUser {
	return DetailUser{
		ID:                u.ID,
		AccountID:         u.AccountID,
		Name:              u.DisplayName,
		Email:             u.Email,
		MessagingHandle:   u.MessagingHandle,
		Phone:             u.Phone,
		CreatedAt:         u.CreatedAt,
		PurchasedPackages: u.PurchasedPackages.orEmpty(),
		ActivePackage:     u.activePackageOrDefault(),
		WalletAddress:     u.WalletAddress,
		Balance:           u.Balance,
		Stake:             u.Stake,
	}
}

func (u *User) activePackageOrDefault() string {
	if u.ActivePackage == "" {
		return NoActivePackage
	}
	return u.ActivePackage
}

func (p PackageList) orEmpty() PackageList {
	if p == nil {
		return PackageList{}
	}
	return p
}
