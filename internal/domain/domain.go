package domain

import "time"

// DomainState is the health classification of a domain.
type DomainState string

const (
	StateNormal        DomainState = "normal"
	StateExpiringSoon  DomainState = "expiring_soon"
	StateExpired       DomainState = "expired"
	StateSuspended     DomainState = "suspended"
	StatePendingDelete DomainState = "pending_delete"
	StateRedemption    DomainState = "redemption"
	StateNoDNS         DomainState = "no_dns"
)

// DefaultRecordTTL applies when upstream omits a record TTL.
const DefaultRecordTTL = 300

// DNSRecord is a normalized resource record.
type DNSRecord struct {
	Type           string `json:"type"`
	Name           string `json:"name"`
	Value          string `json:"value"`
	TTL            int    `json:"ttl"`
	LinkedServerID string `json:"linkedServerId,omitempty"`
}

// Domain is a tenant-owned registration tracked for expiry and lifecycle holds.
// State and DaysRemaining are derived and must only be written by the classifier.
type Domain struct {
	ID                   string      `json:"id"`
	Name                 string      `json:"name"`
	Registrar            string      `json:"registrar,omitempty"`
	DNSProvider          string      `json:"dnsProvider,omitempty"`
	ProviderID           string      `json:"providerId,omitempty"`
	NameServers          []string    `json:"nameServers,omitempty"`
	ExpirationDate       string      `json:"expirationDate,omitempty"`
	Records              []DNSRecord `json:"records"`
	Status               []string    `json:"status"`
	State                DomainState `json:"state"`
	DaysRemaining        *int        `json:"daysRemaining"`
	DisableAutoOverwrite bool        `json:"disableAutoOverwrite"`
	LastSyncAt           *time.Time  `json:"lastSyncAt,omitempty"`
	LastSyncError        string      `json:"lastSyncError,omitempty"`
	CreatedAt            time.Time   `json:"createdAt"`
	UpdatedAt            time.Time   `json:"updatedAt"`
}

// IsExpiring reports whether the state warrants an expiry notification.
func (s DomainState) IsExpiring() bool {
	return s == StateExpiringSoon || s == StateExpired
}
