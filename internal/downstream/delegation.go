package downstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/opendatanode/manager/internal/core/domain"
	"github.com/opendatanode/manager/internal/security/token"
)

// delegationPath is the storage endpoint that exchanges a service
// credential plus a subject descriptor for a delegated bearer token.
const delegationPath = "/jwt/forge"

type delegationRequest struct {
	UserID    int64  `json:"user_id"`
	UserName  string `json:"user_name"`
	GroupName string `json:"group_name,omitempty"`
}

type delegationResponse struct {
	Token string `json:"token"`
}

// DelegatedToken asks the storage service for a short-lived bearer token
// acting on behalf of the given user. The user id is offset so it cannot
// collide with the storage service's own id space.
func (c *Client) DelegatedToken(ctx context.Context, user *domain.User, group string) (string, error) {
	userID := user.ID
	if userID < token.SubjectOffset {
		userID += token.SubjectOffset
	}
	username := user.Username
	if username == "" {
		username = "console"
	}

	var res delegationResponse
	err := c.PostJSON(ctx, delegationPath, delegationRequest{
		UserID:    userID,
		UserName:  username,
		GroupName: group,
	}, &res)
	if err != nil {
		return "", err
	}
	if res.Token == "" {
		return "", &domain.UnreachableError{
			Service: c.service,
			Err:     errors.New("no token in delegation response"),
		}
	}
	return res.Token, nil
}

// String implements fmt.Stringer for log readability.
func (c *Client) String() string {
	return fmt.Sprintf("%s@%s", c.service, c.baseURL)
}
