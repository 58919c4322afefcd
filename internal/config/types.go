package config

type Config struct {
	Slack    SlackConfig    `json:"slack"`
	Monday   MondayConfig   `json:"monday"`
	Holded   HoldedConfig   `json:"holded"`
	Calendar CalendarConfig `json:"calendar"`
	Logging  LoggingConfig  `json:"logging"`

	// Scheduler controls trigger behavior for the cron jobs below.
	Scheduler SchedulerConfig `json:"scheduler"`

	Storage StorageConfig `json:"storage"`
	Jobs    JobsConfig    `json:"jobs"`
}

type SlackConfig struct {
	Token string `json:"token"`
	// DefaultChannel receives run summaries when a job has no channel of its own.
	DefaultChannel string `json:"default_channel"`
	RatePerSec     int    `json:"rate_per_sec,omitempty"`
}

type MondayConfig struct {
	Token      string `json:"token"`
	BaseURL    string `json:"base_url,omitempty"` // default: https://api.monday.com/v2
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type HoldedConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"` // default: https://api.holded.com/api/invoicing/v1
}

// CalendarConfig controls the business-day calendar.
//
// Country is an ISO 3166-1 alpha-2 code. MadridOverlay unions the regional
// Madrid holidays (feed entries tagged ES-MD plus the two fixed local days)
// into the national set.
type CalendarConfig struct {
	Country       string `json:"country"`
	BaseURL       string `json:"base_url,omitempty"`
	MadridOverlay bool   `json:"madrid_overlay"`
	// CacheTTL is a Go duration string (default "24h").
	CacheTTL string `json:"cache_ttl,omitempty"`
}

type LoggingConfig struct {
	Level   string       `json:"level"`
	Console bool         `json:"console"`
	File    LoggingFile  `json:"file"`
	Slack   LoggingSlack `json:"slack"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingSlack struct {
	Enabled    bool   `json:"enabled"`
	Channel    string `json:"channel"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	Workers int  `json:"workers,omitempty"`
	// DefaultTimeout is a Go duration string (e.g. "10m"). "0s" disables it.
	DefaultTimeout string `json:"default_timeout,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
	// Timezone is an IANA TZ, e.g. "Europe/Madrid".
	Timezone string `json:"timezone,omitempty"`
}

type StorageConfig struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string (sqlite busy_timeout pragma).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type JobsConfig struct {
	Recurring RecurringJobConfig `json:"recurring"`
	Report    ReportJobConfig    `json:"report"`
	Catalog   CatalogJobConfig   `json:"catalog"`
}

// RecurringJobConfig drives the recurring-service task generation run.
//
// Column ids are Monday column ids on the template boards.
type RecurringJobConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron spec (default "0 9 1 * *": 09:00 on the 1st).
	Schedule string `json:"schedule,omitempty"`
	Timeout  string `json:"timeout,omitempty"`

	SocialTemplateBoard        string `json:"social_template_board"`
	MaintenanceTemplateBoardID string `json:"maintenance_template_board_id"`
	DateColumnID               string `json:"date_column_id"`
	EstimatedDateColumnID      string `json:"estimated_date_column_id"`
	FrequencyColumnID          string `json:"frequency_column_id"`
}

type ReportJobConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"` // default "0 8 * * 1"
	Timeout  string `json:"timeout,omitempty"`

	Channel string   `json:"channel,omitempty"`
	Boards  []string `json:"boards,omitempty"`
	// Days is the look-ahead window in business days (default 7).
	Days         int    `json:"days,omitempty"`
	DateColumnID string `json:"date_column_id,omitempty"`
}

type CatalogJobConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"` // default "30 2 * * *"
	Timeout  string `json:"timeout,omitempty"`
}
