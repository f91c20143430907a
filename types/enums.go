package types

// State is the user's position in the onboarding script.
type State string

const (
	StateStarted              State = "started"
	StateAwaitingService      State = "awaiting_service_confirmation"
	StateAwaitingExperience   State = "awaiting_experience_confirmation"
	StateAwaitingRegistration State = "awaiting_registration_confirmation"
	StateAwaitingUserID       State = "awaiting_user_id"
	StateAwaitingReEngagement State = "awaiting_re_engagement"
	StateCompleted            State = "completed"
)

type ServiceStatus string

const (
	StatusPending   ServiceStatus = "pending"
	StatusConfirmed ServiceStatus = "confirmed"
)

// Role marks who authored a chat history entry.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)
