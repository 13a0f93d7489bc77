package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/contiapp/conti-server/internal/domain"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me",
		Summary:     "Get current user",
		Description: "Returns the authenticated user's information",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "listUsers",
		Method:      http.MethodGet,
		Path:        "/api/v1/users",
		Summary:     "List users",
		Description: "Returns every account, oldest first. Managers only.",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListUsers)

	huma.Register(s.api, huma.Operation{
		OperationID: "setUserRole",
		Method:      http.MethodPut,
		Path:        "/api/v1/users/{id}/role",
		Summary:     "Set user role",
		Description: "Grants or revokes manager access. Managers only.",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSetUserRole)
}

// UserOutput wraps a user response for Huma.
type UserOutput struct {
	Body UserResponse
}

// ListUsersResponse contains a list of users.
type ListUsersResponse struct {
	Users []UserResponse `json:"users" doc:"Users"`
}

// ListUsersOutput wraps the list users response for Huma.
type ListUsersOutput struct {
	Body ListUsersResponse
}

// SetUserRoleInput contains the target user and role.
type SetUserRoleInput struct {
	ID   string `path:"id" doc:"User ID"`
	Body struct {
		Role string `json:"role" enum:"user,manager" doc:"New role"`
	}
}

func (s *Server) handleGetCurrentUser(ctx context.Context, _ *struct{}) (*UserOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: mapUser(user)}, nil
}

func (s *Server) handleListUsers(ctx context.Context, _ *struct{}) (*ListUsersOutput, error) {
	if _, err := RequireManager(ctx); err != nil {
		return nil, err
	}

	users, err := s.services.User.List(ctx)
	if err != nil {
		return nil, err
	}

	resp := ListUsersResponse{Users: make([]UserResponse, len(users))}
	for i, u := range users {
		resp.Users[i] = mapUser(u)
	}
	return &ListUsersOutput{Body: resp}, nil
}

func (s *Server) handleSetUserRole(ctx context.Context, input *SetUserRoleInput) (*UserOutput, error) {
	if _, err := RequireManager(ctx); err != nil {
		return nil, err
	}

	user, err := s.services.User.SetRole(ctx, input.ID, domain.Role(input.Body.Role))
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: mapUser(user)}, nil
}
