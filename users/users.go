package users

import (
	"strings"
	"time"
)

// Tier is the subscription level carried in the custom:tier claim.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
	TierTeam Tier = "team"
)

// ParseTier maps a claim value onto a known tier. Anything unrecognised is free.
func ParseTier(s string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierPro:
		return TierPro
	case TierTeam:
		return TierTeam
	default:
		return TierFree
	}
}

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

type Preferences struct {
	Theme         Theme  `json:"theme"`
	Notifications bool   `json:"notifications"`
	Language      string `json:"language"`
}

// User is read through from the identity provider and never persisted here.
type User struct {
	UserID             string       `json:"userId"`
	Email              string       `json:"email"`
	Name               string       `json:"name,omitempty"`
	Avatar             string       `json:"avatar,omitempty"`
	Tier               Tier         `json:"tier"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
	OnboardingComplete bool         `json:"onboardingComplete"`
	Preferences        *Preferences `json:"preferences,omitempty"`
}
