package models

type CheckoutRequest struct {
	BuildID string `json:"build_id" binding:"required"`
	AppName string `json:"app_name"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
