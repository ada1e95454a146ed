package domain

import "time"

// DomainCheckFrequency is the cadence of automatic domain checks.
type DomainCheckFrequency string

const (
	FrequencyDaily   DomainCheckFrequency = "daily"
	FrequencyWeekly  DomainCheckFrequency = "weekly"
	FrequencyMonthly DomainCheckFrequency = "monthly"
)

// Interval converts the frequency to a wall-clock duration. Unknown values
// fall back to daily.
func (f DomainCheckFrequency) Interval() time.Duration {
	switch f {
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Valid reports whether f is a known frequency.
func (f DomainCheckFrequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Settings is the per-tenant configuration block.
type Settings struct {
	Whois         WhoisSettings        `json:"whois"`
	AutoCheck     AutoCheckSettings    `json:"autoCheck"`
	Notifications NotificationSettings `json:"notifications"`
	Preferences   Preferences          `json:"preferences"`
}

// WhoisSettings points at the external WHOIS/DNS aggregation API.
type WhoisSettings struct {
	APIBase string `json:"apiBase"`
	APIKey  string `json:"apiKey,omitempty"`
	Method  string `json:"method"`
}

// AutoCheckSettings holds scheduler toggles and last-run bookkeeping.
type AutoCheckSettings struct {
	ServerEnabled       bool                 `json:"serverEnabled"`
	ServerIntervalHours int                  `json:"serverIntervalHours"`
	ServerLastRunAt     *time.Time           `json:"serverLastRunAt,omitempty"`
	DomainEnabled       bool                 `json:"domainEnabled"`
	DomainFrequency     DomainCheckFrequency `json:"domainFrequency"`
	DomainLastRunAt     *time.Time           `json:"domainLastRunAt,omitempty"`
}

// ServerInterval returns the configured server cadence, at least one hour.
func (a AutoCheckSettings) ServerInterval() time.Duration {
	hours := a.ServerIntervalHours
	if hours < 1 {
		hours = 1
	}
	return time.Duration(hours) * time.Hour
}

// NotificationSettings groups the outbound channels.
type NotificationSettings struct {
	Bark BarkSettings `json:"bark"`
	SMTP SMTPSettings `json:"smtp"`
}

// BarkSettings configures the Bark push channel. Key is a secret.
type BarkSettings struct {
	Enabled bool   `json:"enabled"`
	Server  string `json:"server"`
	Key     string `json:"key,omitempty"`
	Group   string `json:"group,omitempty"`
	Sound   string `json:"sound,omitempty"`
}

// SMTPSettings configures the mail channel. Password is a secret.
type SMTPSettings struct {
	Enabled  bool     `json:"enabled"`
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

// Preferences are per-tenant notification toggles.
type Preferences struct {
	NotifyServerDown     bool `json:"notifyServerDown"`
	NotifyDomainExpiring bool `json:"notifyDomainExpiring"`
}

// DefaultSettings returns the settings of a freshly created tenant.
func DefaultSettings() Settings {
	return Settings{
		Whois: WhoisSettings{Method: "GET"},
		AutoCheck: AutoCheckSettings{
			ServerIntervalHours: 1,
			DomainFrequency:     FrequencyDaily,
		},
		Notifications: NotificationSettings{
			Bark: BarkSettings{Server: "https://api.day.app"},
			SMTP: SMTPSettings{Port: 465},
		},
		Preferences: Preferences{NotifyServerDown: true, NotifyDomainExpiring: true},
	}
}
