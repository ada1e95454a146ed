package domain

import "time"

// ServerStatus is the reachability state recorded by the prober.
type ServerStatus string

const (
	ServerRunning ServerStatus = "running"
	ServerStopped ServerStatus = "stopped"
)

// Server is a tenant-owned host probed for TCP reachability.
type Server struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	IP            string       `json:"ip"`
	SSHPort       int          `json:"sshPort"`
	Username      string       `json:"username,omitempty"`
	ProviderID    string       `json:"providerId,omitempty"`
	Status        ServerStatus `json:"status"`
	LastPingMs    *int64       `json:"lastPingMs"`
	LastCheckedAt *time.Time   `json:"lastCheckedAt,omitempty"`

	Password         string `json:"password,omitempty"`
	SSHPassword      string `json:"sshPassword,omitempty"`
	ProviderPassword string `json:"providerPassword,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Provider is a hosting/registrar account referenced by servers and domains.
type Provider struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url,omitempty"`
	Username  string    `json:"username,omitempty"`
	Password  string    `json:"password,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
