package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kentsikayet/portal/internal/complaints"
)

// Scope selects which complaints a list call returns.
type Scope string

const (
	ScopeAll        Scope = "all"
	ScopeMine       Scope = "mine"
	ScopeDepartment Scope = "department"
)

func (s Scope) path() string {
	switch s {
	case ScopeMine:
		return "/complaints/mine"
	case ScopeDepartment:
		return "/complaints/department"
	}
	return "/complaints"
}

// Complaints lists the complaints visible in scope.
func (c *Client) Complaints(ctx context.Context, token string, scope Scope) ([]complaints.Record, error) {
	var out []complaints.Record
	if err := c.Do(ctx, "list_complaints", http.MethodGet, scope.path(), token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateComplaint submits a new complaint and returns the stored record.
func (c *Client) CreateComplaint(ctx context.Context, token string, r complaints.Record) (complaints.Record, error) {
	var out complaints.Record
	err := c.Do(ctx, "create_complaint", http.MethodPost, "/complaints", token, r, &out)
	return out, err
}

// UpdateComplaint replaces a complaint and returns the server's copy.
func (c *Client) UpdateComplaint(ctx context.Context, token string, r complaints.Record) (complaints.Record, error) {
	var out complaints.Record
	err := c.Do(ctx, "update_complaint", http.MethodPut, fmt.Sprintf("/complaints/%d", r.ID), token, r, &out)
	return out, err
}

// DeleteComplaint removes a complaint.
func (c *Client) DeleteComplaint(ctx context.Context, token string, id int) error {
	return c.Do(ctx, "delete_complaint", http.MethodDelete, fmt.Sprintf("/complaints/%d", id), token, nil, nil)
}

// VerifyComplaint records that the caller has also seen the problem.
func (c *Client) VerifyComplaint(ctx context.Context, token string, id int) (complaints.Record, error) {
	var out complaints.Record
	err := c.Do(ctx, "verify_complaint", http.MethodPost, fmt.Sprintf("/complaints/%d/verify", id), token, nil, &out)
	return out, err
}

// Counter names an aggregate count endpoint.
type Counter string

const (
	CountUsers              Counter = "/stats/users"
	CountComplaints         Counter = "/stats/complaints"
	CountResolvedComplaints Counter = "/stats/complaints/resolved"
	CountPendingComplaints  Counter = "/stats/complaints/pending"
)

// Count returns one aggregate counter.
func (c *Client) Count(ctx context.Context, token string, counter Counter) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	err := c.Do(ctx, "count", http.MethodGet, string(counter), token, nil, &out)
	return out.Count, err
}

// Solution links a resolution note and photo to a complaint.
type Solution struct {
	ID          int    `json:"id,omitempty"`
	ComplaintID int    `json:"complaintId"`
	Description string `json:"description"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// AddSolution stores a complaint-to-solution link.
func (c *Client) AddSolution(ctx context.Context, token string, s Solution) (Solution, error) {
	var out Solution
	err := c.Do(ctx, "add_solution", http.MethodPost, "/complaint-solutions", token, s, &out)
	return out, err
}

// Solutions lists the solutions linked to a complaint.
func (c *Client) Solutions(ctx context.Context, token string, complaintID int) ([]Solution, error) {
	var out []Solution
	err := c.Do(ctx, "list_solutions", http.MethodGet, fmt.Sprintf("/complaint-solutions/%d", complaintID), token, nil, &out)
	return out, err
}
