package token

import (
	"time"

	"github.com/ESHWARGEEK/CodeLearn/users"
)

// Claim names issued by the user pool.
const (
	ClaimTokenUse        = "token_use"
	ClaimClientID        = "client_id"
	ClaimUsername        = "username"
	ClaimCognitoUsername = "cognito:username"
	ClaimEmail           = "email"
	ClaimTier            = users.AttrTier
)

const (
	TokenUseAccess = "access"
	TokenUseID     = "id"
)

// Claims is the verified view of a session token.
type Claims struct {
	Subject   string
	Email     string
	Tier      users.Tier
	TokenUse  string
	Username  string
	ExpiresAt time.Time
}
