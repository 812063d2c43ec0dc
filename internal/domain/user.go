package domain

// NotificationPreferences controls how a user is reminded about renewals.
type NotificationPreferences struct {
	Email        bool `json:"email"`
	Push         bool `json:"push"`
	ReminderDays int  `json:"reminderDays"`
}

// User is the authenticated account and its profile fields.
type User struct {
	ID                      string                   `json:"id"`
	Name                    string                   `json:"name"`
	Email                   string                   `json:"email"`
	Avatar                  string                   `json:"avatar,omitempty"`
	Bio                     string                   `json:"bio,omitempty"`
	Location                string                   `json:"location,omitempty"`
	Website                 string                   `json:"website,omitempty"`
	DefaultCurrency         string                   `json:"defaultCurrency,omitempty"`
	Timezone                string                   `json:"timezone,omitempty"`
	DateFormat              string                   `json:"dateFormat,omitempty"`
	NotificationPreferences *NotificationPreferences `json:"notificationPreferences,omitempty"`
}

// Credentials is the login form.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Validate reports missing or malformed credential fields.
func (c Credentials) Validate() error {
	return validateStruct(c).OrNil()
}

// SignupInput is the registration form.
type SignupInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Validate reports missing or malformed signup fields.
func (s SignupInput) Validate() error {
	return validateStruct(s).OrNil()
}

// PasswordChange is the change-password form.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

// Validate reports missing fields.
func (p PasswordChange) Validate() error {
	return validateStruct(p).OrNil()
}

// AuthResult is the backend payload for login and signup.
type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}
