package backend

import "context"

// User identifies the authenticated account
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthResult is the backend's response to login and register
type AuthResult struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

// Login exchanges credentials for a session token. The caller is
// responsible for storing the token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	payload := map[string]string{
		"email":    email,
		"password": password,
	}
	var result AuthResult
	if err := c.postJSON(ctx, "/users/login", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Register creates an account and returns its first session token
func (c *Client) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	payload := map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}
	var result AuthResult
	if err := c.postJSON(ctx, "/users/register", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
