package models

import (
	"fmt"
	"time"
)

// Theme is the user's colour scheme choice.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Preferences are the user toggles persisted in the local cache.
type Preferences struct {
	Theme           Theme  `json:"theme"`
	SoundEnabled    bool   `json:"soundEnabled"`
	VoiceEnabled    bool   `json:"voiceEnabled"`
	ReminderEnabled bool   `json:"reminderEnabled"`
	ReminderTime    string `json:"reminderTime,omitempty"`
}

// DefaultPreferences is applied whenever no stored value exists or a read fails.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:           ThemeSystem,
		SoundEnabled:    true,
		VoiceEnabled:    true,
		ReminderEnabled: false,
	}
}

// Validate rejects unknown themes and malformed reminder times.
func (p Preferences) Validate() error {
	switch p.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return fmt.Errorf("unknown theme %q", p.Theme)
	}
	if p.ReminderTime != "" {
		if _, err := time.Parse("15:04", p.ReminderTime); err != nil {
			return fmt.Errorf("reminder time %q: want HH:MM", p.ReminderTime)
		}
	}
	return nil
}
