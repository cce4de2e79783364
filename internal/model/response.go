package model

// Result is the envelope every API response is wrapped in.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// LoginResult is returned by a successful admin login.
type LoginResult struct {
	Result
	Token     string `json:"token"`
	AdminID   int64  `json:"adminId"`
	ExpiresIn int    `json:"expiresIn"`
}

// KeyResult carries a freshly issued API key. This is the only response
// that ever contains the raw key.
type KeyResult struct {
	Result
	APIKey string `json:"apiKey"`
}

// DashboardResult lists users and their keys, most recent first.
type DashboardResult struct {
	Result
	Data []DashboardRow `json:"data"`
}

// Fail builds an unsuccessful Result with the given message.
func Fail(message string) Result {
	return Result{Success: false, Message: message}
}

// OK builds a successful Result with the given message.
func OK(message string) Result {
	return Result{Success: true, Message: message}
}
