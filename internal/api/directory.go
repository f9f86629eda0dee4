package api

import (
	"context"
	"fmt"
	"net/http"
)

// User is an account as managed from the admin screens.
type User struct {
	ID           int    `json:"id"`
	Name         string `json:"name" binding:"required"`
	Surname      string `json:"surname"`
	Email        string `json:"email" binding:"required,email"`
	Role         string `json:"role" binding:"required"`
	DepartmentID int    `json:"departmentId,omitempty"`
	Password     string `json:"password,omitempty"`
}

// Department is a municipal unit that handles complaints.
type Department struct {
	ID   int    `json:"id"`
	Name string `json:"name" binding:"required"`
}

// ComplaintType is a category of complaint, owned by a department.
type ComplaintType struct {
	ID           int    `json:"id"`
	Name         string `json:"name" binding:"required"`
	DepartmentID int    `json:"departmentId"`
}

// Entity is implemented by the admin-managed resources.
type Entity interface {
	User | Department | ComplaintType
}

func collection[T Entity]() string {
	var zero T
	switch any(zero).(type) {
	case User:
		return "/users"
	case Department:
		return "/departments"
	default:
		return "/complaint-types"
	}
}

// List returns every entity of type T.
func List[T Entity](ctx context.Context, c *Client, token string) ([]T, error) {
	var out []T
	p := collection[T]()
	err := c.Do(ctx, "list"+p, http.MethodGet, p, token, nil, &out)
	return out, err
}

// Create stores a new entity and returns the server's copy.
func Create[T Entity](ctx context.Context, c *Client, token string, v T) (T, error) {
	var out T
	p := collection[T]()
	err := c.Do(ctx, "create"+p, http.MethodPost, p, token, v, &out)
	return out, err
}

// Update replaces entity id and returns the server's copy.
func Update[T Entity](ctx context.Context, c *Client, token string, id int, v T) (T, error) {
	var out T
	p := collection[T]()
	err := c.Do(ctx, "update"+p, http.MethodPut, fmt.Sprintf("%s/%d", p, id), token, v, &out)
	return out, err
}

// Delete removes entity id.
func Delete[T Entity](ctx context.Context, c *Client, token string, id int) error {
	p := collection[T]()
	return c.Do(ctx, "delete"+p, http.MethodDelete, fmt.Sprintf("%s/%d", p, id), token, nil, nil)
}
