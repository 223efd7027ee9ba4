package users

import "time"

// User pool attribute names.
const (
	AttrSub                = "sub"
	AttrEmail              = "email"
	AttrName               = "name"
	AttrPicture            = "picture"
	AttrTier               = "custom:tier"
	AttrCreatedAt          = "custom:createdAt"
	AttrOnboardingComplete = "custom:onboardingComplete"
)

// FromAttributes builds a User from the attribute map returned by a get-user call.
// userID is the pool username; the sub attribute is only used when it is empty.
// Missing timestamps fall back to now.
func FromAttributes(userID string, attrs map[string]string, now time.Time) *User {
	if userID == "" {
		userID = attrs[AttrSub]
	}

	createdAt := now
	if raw := attrs[AttrCreatedAt]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			createdAt = t
		}
	}

	return &User{
		UserID:             userID,
		Email:              attrs[AttrEmail],
		Name:               attrs[AttrName],
		Avatar:             attrs[AttrPicture],
		Tier:               ParseTier(attrs[AttrTier]),
		CreatedAt:          createdAt,
		UpdatedAt:          now,
		OnboardingComplete: attrs[AttrOnboardingComplete] == "true",
	}
}
