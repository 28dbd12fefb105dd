package model

type User struct {
	Id       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type AuthToken struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// Session is the authenticated identity shared by the client.
type Session struct {
	Token string
	User  *User
}

// IsAuthenticated requires both a token and a known user.
func (s Session) IsAuthenticated() bool {
	return s.Token != "" && s.User != nil
}

type LoginPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RegisterPayload struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}
