package inventory

import (
	"context"
	"net/mail"
	"strings"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
)

// MaxServerIntervalHours bounds the server check cadence to one week.
const MaxServerIntervalHours = 168

// SettingsPatch updates settings section by section. Nil sections and nil
// fields are left unchanged.
type SettingsPatch struct {
	Whois         *WhoisPatch       `json:"whois"`
	AutoCheck     *AutoCheckPatch   `json:"autoCheck"`
	Notifications *NotifyPatch      `json:"notifications"`
	Preferences   *PreferencesPatch `json:"preferences"`
}

type WhoisPatch struct {
	APIBase *string               `json:"apiBase"`
	APIKey  domain.OptionalString `json:"apiKey"`
	Method  *string               `json:"method"`
}

type AutoCheckPatch struct {
	ServerEnabled       *bool                        `json:"serverEnabled"`
	ServerIntervalHours *int                         `json:"serverIntervalHours"`
	DomainEnabled       *bool                        `json:"domainEnabled"`
	DomainFrequency     *domain.DomainCheckFrequency `json:"domainFrequency"`
}

type NotifyPatch struct {
	Bark *BarkPatch `json:"bark"`
	SMTP *SMTPPatch `json:"smtp"`
}

type BarkPatch struct {
	Enabled *bool                 `json:"enabled"`
	Server  *string               `json:"server"`
	Key     domain.OptionalString `json:"key"`
	Group   *string               `json:"group"`
	Sound   *string               `json:"sound"`
}

type SMTPPatch struct {
	Enabled  *bool                 `json:"enabled"`
	Host     *string               `json:"host"`
	Port     *int                  `json:"port"`
	Username *string               `json:"username"`
	Password domain.OptionalString `json:"password"`
	From     *string               `json:"from"`
	To       *[]string             `json:"to"`
}

type PreferencesPatch struct {
	NotifyServerDown     *bool `json:"notifyServerDown"`
	NotifyDomainExpiring *bool `json:"notifyDomainExpiring"`
}

// SettingsView is the tenant settings block with secrets replaced by flags.
type SettingsView struct {
	Whois struct {
		APIBase   string `json:"apiBase"`
		Method    string `json:"method"`
		HasAPIKey bool   `json:"hasApiKey"`
	} `json:"whois"`
	AutoCheck     domain.AutoCheckSettings `json:"autoCheck"`
	Notifications struct {
		Bark struct {
			Enabled bool   `json:"enabled"`
			Server  string `json:"server"`
			Group   string `json:"group,omitempty"`
			Sound   string `json:"sound,omitempty"`
			HasKey  bool   `json:"hasKey"`
		} `json:"bark"`
		SMTP struct {
			Enabled     bool     `json:"enabled"`
			Host        string   `json:"host"`
			Port        int      `json:"port"`
			Username    string   `json:"username,omitempty"`
			From        string   `json:"from"`
			To          []string `json:"to"`
			HasPassword bool     `json:"hasPassword"`
		} `json:"smtp"`
	} `json:"notifications"`
	Preferences domain.Preferences `json:"preferences"`
}

func settingsView(s domain.Settings) SettingsView {
	var v SettingsView
	v.Whois.APIBase = s.Whois.APIBase
	v.Whois.Method = s.Whois.Method
	v.Whois.HasAPIKey = s.Whois.APIKey != ""
	v.AutoCheck = s.AutoCheck
	bark := s.Notifications.Bark
	v.Notifications.Bark.Enabled = bark.Enabled
	v.Notifications.Bark.Server = bark.Server
	v.Notifications.Bark.Group = bark.Group
	v.Notifications.Bark.Sound = bark.Sound
	v.Notifications.Bark.HasKey = bark.Key != ""
	smtp := s.Notifications.SMTP
	v.Notifications.SMTP.Enabled = smtp.Enabled
	v.Notifications.SMTP.Host = smtp.Host
	v.Notifications.SMTP.Port = smtp.Port
	v.Notifications.SMTP.Username = smtp.Username
	v.Notifications.SMTP.From = smtp.From
	v.Notifications.SMTP.To = append([]string{}, smtp.To...)
	v.Notifications.SMTP.HasPassword = smtp.Password != ""
	v.Preferences = s.Preferences
	return v
}

// GetSettings returns the redacted settings.
func (s Service) GetSettings(ctx context.Context, tenantID string) (SettingsView, error) {
	cfg, err := s.Settings(ctx, tenantID)
	if err != nil {
		return SettingsView{}, err
	}
	return settingsView(cfg), nil
}

// Settings returns the settings with opened secrets for in-process callers
// such as connectivity tests. Never serialise the result.
func (s Service) Settings(ctx context.Context, tenantID string) (domain.Settings, error) {
	doc, err := s.load(ctx, tenantID)
	if err != nil {
		return domain.Settings{}, err
	}
	return doc.Settings, nil
}

// UpdateSettings validates and applies a patch.
func (s Service) UpdateSettings(ctx context.Context, tenantID string, patch SettingsPatch) (SettingsView, error) {
	var out domain.Settings
	_, err := s.repo.Update(ctx, tenantID, func(doc *domain.Document) error {
		next := doc.Settings
		next.Notifications.SMTP.To = append([]string(nil), doc.Settings.Notifications.SMTP.To...)
		if err := applySettings(&next, patch); err != nil {
			return err
		}
		doc.Settings = next
		out = next
		return nil
	})
	if err != nil {
		return SettingsView{}, err
	}
	s.logger.Info("settings updated", "tenant_id", tenantID)
	return settingsView(out), nil
}

func applySettings(cfg *domain.Settings, p SettingsPatch) error {
	if w := p.Whois; w != nil {
		if w.APIBase != nil {
			cfg.Whois.APIBase = strings.TrimSpace(*w.APIBase)
		}
		if w.Method != nil {
			method := strings.ToUpper(strings.TrimSpace(*w.Method))
			if method != "GET" && method != "POST" {
				return invalid("whois method must be GET or POST")
			}
			cfg.Whois.Method = method
		}
		cfg.Whois.APIKey = w.APIKey.Apply(cfg.Whois.APIKey)
	}
	if a := p.AutoCheck; a != nil {
		if a.ServerEnabled != nil {
			cfg.AutoCheck.ServerEnabled = *a.ServerEnabled
		}
		if a.ServerIntervalHours != nil {
			if *a.ServerIntervalHours < 1 || *a.ServerIntervalHours > MaxServerIntervalHours {
				return invalid("serverIntervalHours must be between 1 and %d", MaxServerIntervalHours)
			}
			cfg.AutoCheck.ServerIntervalHours = *a.ServerIntervalHours
		}
		if a.DomainEnabled != nil {
			cfg.AutoCheck.DomainEnabled = *a.DomainEnabled
		}
		if a.DomainFrequency != nil {
			if !a.DomainFrequency.Valid() {
				return invalid("domainFrequency must be daily, weekly or monthly")
			}
			cfg.AutoCheck.DomainFrequency = *a.DomainFrequency
		}
	}
	if n := p.Notifications; n != nil {
		if b := n.Bark; b != nil {
			bark := &cfg.Notifications.Bark
			if b.Enabled != nil {
				bark.Enabled = *b.Enabled
			}
			if b.Server != nil {
				bark.Server = strings.TrimRight(strings.TrimSpace(*b.Server), "/")
			}
			if b.Group != nil {
				bark.Group = strings.TrimSpace(*b.Group)
			}
			if b.Sound != nil {
				bark.Sound = strings.TrimSpace(*b.Sound)
			}
			bark.Key = b.Key.Apply(bark.Key)
		}
		if m := n.SMTP; m != nil {
			if err := applySMTP(&cfg.Notifications.SMTP, m); err != nil {
				return err
			}
		}
	}
	if pr := p.Preferences; pr != nil {
		if pr.NotifyServerDown != nil {
			cfg.Preferences.NotifyServerDown = *pr.NotifyServerDown
		}
		if pr.NotifyDomainExpiring != nil {
			cfg.Preferences.NotifyDomainExpiring = *pr.NotifyDomainExpiring
		}
	}
	return nil
}

func applySMTP(smtp *domain.SMTPSettings, m *SMTPPatch) error {
	if m.Enabled != nil {
		smtp.Enabled = *m.Enabled
	}
	if m.Host != nil {
		smtp.Host = strings.TrimSpace(*m.Host)
	}
	if m.Port != nil {
		if *m.Port < 1 || *m.Port > 65535 {
			return invalid("smtp port must be between 1 and 65535")
		}
		smtp.Port = *m.Port
	}
	if m.Username != nil {
		smtp.Username = strings.TrimSpace(*m.Username)
	}
	if m.From != nil {
		smtp.From = strings.TrimSpace(*m.From)
		if smtp.From != "" {
			if _, err := mail.ParseAddress(smtp.From); err != nil {
				return invalid("smtp from %q is not an address", smtp.From)
			}
		}
	}
	if m.To != nil {
		to := make([]string, 0, len(*m.To))
		for _, addr := range *m.To {
			addr = strings.TrimSpace(addr)
			if addr == "" {
				continue
			}
			if _, err := mail.ParseAddress(addr); err != nil {
				return invalid("smtp recipient %q is not an address", addr)
			}
			to = append(to, addr)
		}
		smtp.To = to
	}
	smtp.Password = m.Password.Apply(smtp.Password)
	return nil
}
