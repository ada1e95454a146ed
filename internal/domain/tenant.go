package domain

import "time"

// Document is the unit of persistence: everything a tenant owns, read and
// written as a whole.
type Document struct {
	TenantID  string          `json:"tenantId"`
	Servers   []Server        `json:"servers"`
	Domains   []Domain        `json:"domains"`
	Providers []Provider      `json:"providers"`
	Settings  Settings        `json:"settings"`
	CheckLogs []CheckLogEntry `json:"checkLogs"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewDocument returns an empty document with default settings.
func NewDocument(tenantID string) *Document {
	return &Document{
		TenantID:  tenantID,
		Servers:   []Server{},
		Domains:   []Domain{},
		Providers: []Provider{},
		Settings:  DefaultSettings(),
		CheckLogs: []CheckLogEntry{},
	}
}

// Server returns a pointer into Servers for id, or nil.
func (d *Document) Server(id string) *Server {
	for i := range d.Servers {
		if d.Servers[i].ID == id {
			return &d.Servers[i]
		}
	}
	return nil
}

// Domain returns a pointer into Domains for id, or nil.
func (d *Document) Domain(id string) *Domain {
	for i := range d.Domains {
		if d.Domains[i].ID == id {
			return &d.Domains[i]
		}
	}
	return nil
}

// Provider returns a pointer into Providers for id, or nil.
func (d *Document) Provider(id string) *Provider {
	for i := range d.Providers {
		if d.Providers[i].ID == id {
			return &d.Providers[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers can work on a snapshot outside a lock.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Servers = append([]Server(nil), d.Servers...)
	out.Providers = append([]Provider(nil), d.Providers...)
	out.Domains = make([]Domain, len(d.Domains))
	for i, dom := range d.Domains {
		dom.Records = append([]DNSRecord(nil), dom.Records...)
		dom.Status = append([]string(nil), dom.Status...)
		dom.NameServers = append([]string(nil), dom.NameServers...)
		out.Domains[i] = dom
	}
	out.Settings.Notifications.SMTP.To = append([]string(nil), d.Settings.Notifications.SMTP.To...)
	out.CheckLogs = append([]CheckLogEntry(nil), d.CheckLogs...)
	return &out
}
