package notifications

const (
	TypeWelcome         = "welcome"
	TypePasswordReset   = "password_reset"
	TypePasswordChanged = "password_changed"
	TypeReviewCompleted = "review_completed"
	TypeTeamInvite      = "team_invite"
)

const (
	subjectWelcome         = "Welcome to Appraze!"
	subjectPasswordReset   = "Reset Your Appraze Password"
	subjectPasswordChanged = "Your Appraze Password Has Been Changed"
	subjectTeamInvite      = "You've been invited to join Appraze"
)
