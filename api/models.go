package api

import (
	openapi_types "github.com/oapi-codegen/runtime/types"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
)

type Book struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
	ISBN   string `json:"isbn"`
}

// Loan is a borrow record. It is active while ReturnedDate is nil and the
// server owns setting ReturnedDate on return.
type Loan struct {
	ID           int64               `json:"id"`
	BookID       int64               `json:"book_id"`
	UserID       int64               `json:"user_id"`
	DueDate      openapi_types.Date  `json:"due_date"`
	ReturnedDate *openapi_types.Date `json:"returned_date"`
}

func (l Loan) Active() bool {
	return l.ReturnedDate == nil
}

type User struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

type NewUser struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// CreateLoanRequest is the POST /borrow/ body. ReturnedDate is always
// serialized as null on create.
type CreateLoanRequest struct {
	BookID       int64               `json:"book_id"`
	UserID       int64               `json:"user_id"`
	DueDate      openapi_types.Date  `json:"due_date"`
	ReturnedDate *openapi_types.Date `json:"returned_date"`
}
