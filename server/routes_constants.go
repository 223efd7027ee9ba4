package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// API root
	RouteAPI    = "/api/"
	RouteHealth = "/api/health"

	// Auth Routes - Account
	RouteSignup     = "/api/auth/signup"
	RouteVerify     = "/api/auth/verify"
	RouteResendCode = "/api/auth/resend-code"

	// Auth Routes - Session
	RouteLogin   = "/api/auth/login"
	RouteLogout  = "/api/auth/logout"
	RouteMe      = "/api/auth/me"
	RouteRefresh = "/api/auth/refresh"

	// Auth Routes - Password Management
	RouteForgotPassword = "/api/auth/forgot-password"
	RouteResetPassword  = "/api/auth/reset-password"

	// Auth Routes - OAuth
	RouteOAuthStart    = "/api/auth/oauth/{provider}"
	RouteOAuthCallback = "/api/auth/callback/{provider}"
	RouteOAuthExchange = "/api/auth/callback/{provider}/exchange"

	// Pages the gate and the OAuth callback redirect to
	PageLogin      = "/login"
	PageUpgrade    = "/upgrade"
	PageDashboard  = "/dashboard"
	PageOnboarding = "/onboarding"
)
