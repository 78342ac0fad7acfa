package types

import "log/slog"

// Theme values.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// Default view values.
const (
	ViewGrid = "grid"
	ViewList = "list"
)

// Search modes.
const (
	SearchNormal = "normal"
	SearchLLM    = "llm"
)

// Settings is the process-wide preferences document. It is stored as a single
// JSON row.
type Settings struct {
	Theme              string `json:"theme"`
	DefaultView        string `json:"defaultView"`
	ItemsPerPage       int    `json:"itemsPerPage"`
	SearchMode         string `json:"searchMode"`
	LLMProvider        string `json:"llmProvider"`
	LLMAPIKey          string `json:"llmApiKey,omitempty"`
	Notifications      bool   `json:"notifications"`
	NotificationTiming int    `json:"notificationTiming"` // days before due
}

// DefaultSettings returns the settings used when none are stored.
func DefaultSettings() Settings {
	return Settings{
		Theme:              ThemeSystem,
		DefaultView:        ViewList,
		ItemsPerPage:       20,
		SearchMode:         SearchNormal,
		Notifications:      true,
		NotificationTiming: DefaultNotifyBefore,
	}
}

// Validate checks enum and range fields.
func (s Settings) Validate() error {
	switch s.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return invalid("theme", ErrInvalidSetting)
	}
	switch s.DefaultView {
	case ViewGrid, ViewList:
	default:
		return invalid("defaultView", ErrInvalidSetting)
	}
	if s.ItemsPerPage < 1 {
		return invalid("itemsPerPage", ErrInvalidSetting)
	}
	switch s.SearchMode {
	case SearchNormal, SearchLLM:
	default:
		return invalid("searchMode", ErrInvalidSetting)
	}
	if s.NotificationTiming < 0 {
		return invalid("notificationTiming", ErrInvalidSetting)
	}
	return nil
}

// Redacted returns a copy without the LLM API key.
func (s Settings) Redacted() Settings {
	if s.LLMAPIKey != "" {
		s.LLMAPIKey = "[redacted]"
	}
	return s
}

// LogValue keeps the LLM API key out of every log line.
func (s Settings) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("theme", s.Theme),
		slog.String("defaultView", s.DefaultView),
		slog.Int("itemsPerPage", s.ItemsPerPage),
		slog.String("searchMode", s.SearchMode),
		slog.String("llmProvider", s.LLMProvider),
		slog.Bool("llmApiKeySet", s.LLMAPIKey != ""),
		slog.Bool("notifications", s.Notifications),
	)
}

// SettingsPatch lists the settings a save should change; the rest keep their
// previous values.
type SettingsPatch struct {
	Theme              *string `json:"theme,omitempty"`
	DefaultView        *string `json:"defaultView,omitempty"`
	ItemsPerPage       *int    `json:"itemsPerPage,omitempty"`
	SearchMode         *string `json:"searchMode,omitempty"`
	LLMProvider        *string `json:"llmProvider,omitempty"`
	LLMAPIKey          *string `json:"llmApiKey,omitempty"`
	Notifications      *bool   `json:"notifications,omitempty"`
	NotificationTiming *int    `json:"notificationTiming,omitempty"`
}

// Apply merges p over s.
func (s Settings) Apply(p SettingsPatch) Settings {
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.DefaultView != nil {
		s.DefaultView = *p.DefaultView
	}
	if p.ItemsPerPage != nil {
		s.ItemsPerPage = *p.ItemsPerPage
	}
	if p.SearchMode != nil {
		s.SearchMode = *p.SearchMode
	}
	if p.LLMProvider != nil {
		s.LLMProvider = *p.LLMProvider
	}
	if p.LLMAPIKey != nil {
		s.LLMAPIKey = *p.LLMAPIKey
	}
	if p.Notifications != nil {
		s.Notifications = *p.Notifications
	}
	if p.NotificationTiming != nil {
		s.NotificationTiming = *p.NotificationTiming
	}
	return s
}
