package dto

import "time"

// RegisterDTO is the request body for user registration.
type RegisterDTO struct {
	Login    string `json:"login" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginDTO is the request body for authentication.
type LoginDTO struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponseDTO carries the signed JWT back to the client.
type TokenResponseDTO struct {
	Token string `json:"token"`
}

// UserResponseDTO is the public projection of a user.
type UserResponseDTO struct {
	Login     string    `json:"login"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}
