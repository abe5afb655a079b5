package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	pkgerrors "github.com/anandmobiles/storefront-gateway/pkg/errors"
)

// Backend endpoints, paths preserved for compatibility with the deployed API.
const (
	EndpointCSRFToken  = "/api/auth/csrf-token/"
	EndpointLogin      = "/api/auth/login/"
	EndpointRegister   = "/api/auth/register/"
	EndpointProfile    = "/api/auth/profile/"
	EndpointAdminUsers = "/api/auth/admin/users/"
)

// AdminVerifyEndpoint builds the per-user verification path.
func AdminVerifyEndpoint(userID string) string {
	return "/api/auth/admin/verify/" + url.PathEscape(userID) + "/"
}

// LoginBody is the login payload: either password credentials or an OAuth
// identity token, never both.
type LoginBody struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	IDToken  string `json:"idToken,omitempty"`
}

// RegisterBody is the registration payload, including the role-specific
// profile sub-object forwarded verbatim.
type RegisterBody struct {
	Email       string         `json:"email"`
	Password    string         `json:"password"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Phone       string         `json:"phone,omitempty"`
	UserType    string         `json:"user_type"`
	ProfileData map[string]any `json:"profile_data,omitempty"`
}

// AccountUser is the user record embedded in login/register responses.
type AccountUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	UserType  string `json:"user_type"`
}

// AuthResult is the normalized login/register response.
type AuthResult struct {
	User                 *AccountUser `json:"user"`
	Token                string       `json:"token"`
	DashboardURL         string       `json:"dashboard_url"`
	RequiresVerification bool         `json:"requires_verification"`
	Permissions          []string     `json:"permissions"`
	UserTypeDisplay      string       `json:"user_type_display"`
	Message              string       `json:"message"`
}

// Profile is the raw profile payload. The backend is inconsistent about
// identifier and phone field names, so both variants are captured and
// accessors pick whichever is populated.
type Profile struct {
	Email       string `json:"email"`
	UserID      string `json:"user_id"`
	UID         string `json:"uid"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Phone       string `json:"phone"`
	PhoneNumber string `json:"phone_number"`
	UserType    string `json:"user_type"`
}

// ID returns the user identifier from whichever field the backend used.
func (p *Profile) ID() string {
	if p.UserID != "" {
		return p.UserID
	}
	return p.UID
}

// PhoneValue returns the phone number from whichever field the backend used.
func (p *Profile) PhoneValue() string {
	if p.PhoneNumber != "" {
		return p.PhoneNumber
	}
	return p.Phone
}

// User normalizes the profile into the session's user shape.
func (p *Profile) User() *AccountUser {
	return &AccountUser{
		ID:        p.ID(),
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.PhoneValue(),
		UserType:  p.UserType,
	}
}

// HasIdentity reports whether the payload carries a recognizable identity.
// Session validation treats a profile without one as an invalid session.
func (p *Profile) HasIdentity() bool {
	return p != nil && (p.Email != "" || p.ID() != "")
}

// Login posts credentials to the backend login endpoint.
func (c *Client) Login(ctx context.Context, body LoginBody) (*AuthResult, error) {
	resp, err := c.Do(ctx, http.MethodPost, EndpointLogin, body, "")
	if err != nil {
		return nil, err
	}
	return decodeAuthResult(resp)
}

// Register posts a registration payload to the backend.
func (c *Client) Register(ctx context.Context, body RegisterBody) (*AuthResult, error) {
	resp, err := c.Do(ctx, http.MethodPost, EndpointRegister, body, "")
	if err != nil {
		return nil, err
	}
	return decodeAuthResult(resp)
}

// FetchProfile loads the authenticated profile using the supplied bearer token.
func (c *Client) FetchProfile(ctx context.Context, token string) (*Profile, error) {
	resp, err := c.Do(ctx, http.MethodGet, EndpointProfile, nil, token)
	if err != nil {
		return nil, err
	}
	var profile Profile
	if err := resp.Decode(&profile); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "decoding profile")
	}
	return &profile, nil
}

// AdminListUsers queries the admin user listing, optionally filtered by
// user type and capped by limit.
func (c *Client) AdminListUsers(ctx context.Context, token, userType string, limit int) (json.RawMessage, error) {
	endpoint := EndpointAdminUsers
	query := url.Values{}
	if userType != "" {
		query.Set("user_type", userType)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if encoded := query.Encode(); encoded != "" {
		endpoint = endpoint + "?" + encoded
	}

	resp, err := c.Do(ctx, http.MethodGet, endpoint, nil, token)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// AdminVerifyUser marks a pending account as verified.
func (c *Client) AdminVerifyUser(ctx context.Context, token, userID string) (string, error) {
	if userID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	resp, err := c.Do(ctx, http.MethodPost, AdminVerifyEndpoint(userID), nil, token)
	if err != nil {
		return "", err
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := resp.Decode(&payload); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "decoding verify response")
	}
	return payload.Message, nil
}

func decodeAuthResult(resp *Response) (*AuthResult, error) {
	var result AuthResult
	if err := resp.Decode(&result); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, fmt.Sprintf("decoding auth response (HTTP %d)", resp.Status))
	}
	return &result, nil
}
