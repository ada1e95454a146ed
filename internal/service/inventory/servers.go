package inventory

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/service/whois"
)

// DefaultSSHPort is used when a server is created without one.
const DefaultSSHPort = 22

// ServerInput creates or patches a server. Nil fields are left unchanged on
// update; secret fields follow OptionalString semantics.
type ServerInput struct {
	Name             *string               `json:"name"`
	IP               *string               `json:"ip"`
	SSHPort          *int                  `json:"sshPort"`
	Username         *string               `json:"username"`
	ProviderID       *string               `json:"providerId"`
	Password         domain.OptionalString `json:"password"`
	SSHPassword      domain.OptionalString `json:"sshPassword"`
	ProviderPassword domain.OptionalString `json:"providerPassword"`
}

// ServerView is a server with its secrets redacted.
type ServerView struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	IP                  string              `json:"ip"`
	SSHPort             int                 `json:"sshPort"`
	Username            string              `json:"username,omitempty"`
	ProviderID          string              `json:"providerId,omitempty"`
	Status              domain.ServerStatus `json:"status"`
	LastPingMs          *int64              `json:"lastPingMs"`
	LastCheckedAt       *time.Time          `json:"lastCheckedAt,omitempty"`
	HasPassword         bool                `json:"hasPassword"`
	HasSSHPassword      bool                `json:"hasSshPassword"`
	HasProviderPassword bool                `json:"hasProviderPassword"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

func serverView(s domain.Server) ServerView {
	return ServerView{
		ID:                  s.ID,
		Name:                s.Name,
		IP:                  s.IP,
		SSHPort:             s.SSHPort,
		Username:            s.Username,
		ProviderID:          s.ProviderID,
		Status:              s.Status,
		LastPingMs:          s.LastPingMs,
		LastCheckedAt:       s.LastCheckedAt,
		HasPassword:         s.Password != "",
		HasSSHPassword:      s.SSHPassword != "",
		HasProviderPassword: s.ProviderPassword != "",
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

// ListServers returns every server of the tenant.
func (s Service) ListServers(ctx context.Context, tenantID string) ([]ServerView, error) {
	doc, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]ServerView, 0, len(doc.Servers))
	for _, srv := range doc.Servers {
		out = append(out, serverView(srv))
	}
	return out, nil
}

// GetServer returns one server.
func (s Service) GetServer(ctx context.Context, tenantID, id string) (ServerView, error) {
	doc, err := s.load(ctx, tenantID)
	if err != nil {
		return ServerView{}, err
	}
	srv := doc.Server(id)
	if srv == nil {
		return ServerView{}, ErrNotFound
	}
	return serverView(*srv), nil
}

// CreateServer adds a server. Name and IP are required.
func (s Service) CreateServer(ctx context.Context, tenantID string, in ServerInput) (ServerView, error) {
	now := s.timestamp()
	srv := domain.Server{
		ID:        uuid.NewString(),
		SSHPort:   DefaultSSHPort,
		Status:    domain.ServerStopped,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyServer(&srv, in); err != nil {
		return ServerView{}, err
	}
	if srv.Name == "" || srv.IP == "" {
		return ServerView{}, invalid("name and ip are required")
	}
	_, err := s.repo.Update(ctx, tenantID, func(doc *domain.Document) error {
		if srv.ProviderID != "" && doc.Provider(srv.ProviderID) == nil {
			return invalid("provider %s does not exist", srv.ProviderID)
		}
		doc.Servers = append(doc.Servers, srv)
		relink(doc)
		return nil
	})
	if err != nil {
		return ServerView{}, err
	}
	s.logger.Info("server created", "tenant_id", tenantID, "server_id", srv.ID)
	return serverView(srv), nil
}

// UpdateServer patches a server.
func (s Service) UpdateServer(ctx context.Context, tenantID, id string, in ServerInput) (ServerView, error) {
	var out domain.Server
	_, err := s.repo.Update(ctx, tenantID, func(doc *domain.Document) error {
		srv := doc.Server(id)
		if srv == nil {
			return ErrNotFound
		}
		next := *srv
		if err := applyServer(&next, in); err != nil {
			return err
		}
		if next.Name == "" || next.IP == "" {
			return invalid("name and ip are required")
		}
		if next.ProviderID != "" && doc.Provider(next.ProviderID) == nil {
			return invalid("provider %s does not exist", next.ProviderID)
		}
		next.UpdatedAt = s.timestamp()
		*srv = next
		out = next
		relink(doc)
		return nil
	})
	if err != nil {
		return ServerView{}, err
	}
	return serverView(out), nil
}

// DeleteServer removes a server and any DNS links to it.
func (s Service) DeleteServer(ctx context.Context, tenantID, id string) error {
	_, err := s.repo.Update(ctx, tenantID, func(doc *domain.Document) error {
		for i := range doc.Servers {
			if doc.Servers[i].ID == id {
				doc.Servers = append(doc.Servers[:i], doc.Servers[i+1:]...)
				relink(doc)
				return nil
			}
		}
		return ErrNotFound
	})
	if err == nil {
		s.logger.Info("server deleted", "tenant_id", tenantID, "server_id", id)
	}
	return err
}

func applyServer(srv *domain.Server, in ServerInput) error {
	if in.Name != nil {
		srv.Name = strings.TrimSpace(*in.Name)
	}
	if in.IP != nil {
		srv.IP = strings.TrimSpace(*in.IP)
		if srv.IP != "" && net.ParseIP(srv.IP) == nil && !validHostname(srv.IP) {
			return invalid("ip %q is not an address or hostname", srv.IP)
		}
	}
	if in.SSHPort != nil {
		if *in.SSHPort < 1 || *in.SSHPort > 65535 {
			return invalid("sshPort must be between 1 and 65535")
		}
		srv.SSHPort = *in.SSHPort
	}
	if in.Username != nil {
		srv.Username = strings.TrimSpace(*in.Username)
	}
	if in.ProviderID != nil {
		srv.ProviderID = strings.TrimSpace(*in.ProviderID)
	}
	srv.Password = in.Password.Apply(srv.Password)
	srv.SSHPassword = in.SSHPassword.Apply(srv.SSHPassword)
	srv.ProviderPassword = in.ProviderPassword.Apply(srv.ProviderPassword)
	return nil
}

func validHostname(h string) bool {
	if len(h) > 253 || strings.ContainsAny(h, " /:@") {
		return false
	}
	for _, label := range strings.Split(h, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
	}
	return true
}

// relink recomputes A/AAAA links after the server list changed.
func relink(doc *domain.Document) {
	for i := range doc.Domains {
		whois.LinkServers(doc.Domains[i].Records, doc.Servers)
	}
}
