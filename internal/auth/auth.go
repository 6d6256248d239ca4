package auth

type Authenticator interface {
	GenerateTokens(userID int64, username, email, role string) (string, string, error)
	ValidateAccessToken(token string) (*Claims, error)
	ValidateRefreshToken(token string) (*Claims, error)
	Rotate(refreshToken string) (string, string, error)
}
