package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitroom/internal/models"
)

// ListGroups returns the groups of the current user. A 404 means the user
// has no groups.
func (c *Client) ListGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	_, err := c.do(ctx, request{op: "list_groups", method: http.MethodGet, path: "/api/groups"}, &groups)
	if errors.Is(err, ErrNotFound) {
		return []models.Group{}, nil
	}
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []models.Group{}
	}
	return groups, nil
}

// GetGroup fetches the full snapshot of one group.
func (c *Client) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	if err := required("group", groupID); err != nil {
		return nil, err
	}

	var group models.Group
	ok, err := c.do(ctx, request{op: "get_group", method: http.MethodGet, path: "/api/groups/" + escape(groupID)}, &group)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &Error{Operation: "get_group", Status: http.StatusOK, Message: DefaultErrorMessage, Err: errors.New("empty response")}
	}
	return &group, nil
}

// CreateGroupResult reports a group creation and its member invitations.
type CreateGroupResult struct {
	Group *models.Group

	// Added lists the emails that were added or invited.
	Added []string

	// Failed maps each email that could not be added to its error.
	Failed map[string]error
}

// CreateGroup creates a group and then adds each member email. Member
// additions run concurrently; their failures are reported in the result and
// do not fail the call.
func (c *Client) CreateGroup(ctx context.Context, name string, memberEmails []string) (*CreateGroupResult, error) {
	if err := required("group name", name); err != nil {
		return nil, err
	}
	emails := dedupe(memberEmails)
	for _, email := range emails {
		if err := validEmail("member email", email); err != nil {
			return nil, err
		}
	}

	var group models.Group
	if _, err := c.do(ctx, request{
		op:     "create_group",
		method: http.MethodPost,
		path:   "/api/groups",
		body:   map[string]string{"name": strings.TrimSpace(name)},
	}, &group); err != nil {
		return nil, err
	}
	c.logger.Info("Group created", "group_id", group.ID, "members", len(emails))

	result := &CreateGroupResult{Group: &group, Failed: map[string]error{}}
	if len(emails) == 0 {
		return result, nil
	}

	var (
		mu    sync.Mutex
		added = make(map[string]bool, len(emails))
		g     errgroup.Group
	)
	g.SetLimit(c.inviteConcurrency)
	for _, email := range emails {
		g.Go(func() error {
			_, err := c.AddMember(ctx, group.ID, email)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Warn("Failed to add member", "group_id", group.ID, "email", email, "error", err)
				result.Failed[email] = err
				return nil
			}
			added[email] = true
			return nil
		})
	}
	_ = g.Wait()

	for _, email := range emails {
		if added[email] {
			result.Added = append(result.Added, email)
		}
	}
	return result, nil
}

// DeleteGroup deletes a group.
func (c *Client) DeleteGroup(ctx context.Context, groupID string) error {
	if err := required("group", groupID); err != nil {
		return err
	}
	_, err := c.do(ctx, request{op: "delete_group", method: http.MethodDelete, path: "/api/groups/" + escape(groupID)}, nil)
	return err
}

// AddMember adds a registered user to the group or invites the email.
// The returned group is nil when the server sends no body.
func (c *Client) AddMember(ctx context.Context, groupID, email string) (*models.Group, error) {
	if err := firstError(required("group", groupID), validEmail("email", email)); err != nil {
		return nil, err
	}
	return c.groupMutation(ctx, request{
		op:     "add_member",
		method: http.MethodPost,
		path:   "/api/groups/" + escape(groupID) + "/members",
		body:   map[string]string{"email": strings.TrimSpace(email)},
	})
}

// RemoveMember removes a member by email.
func (c *Client) RemoveMember(ctx context.Context, groupID, email string) (*models.Group, error) {
	if err := firstError(required("group", groupID), required("email", email)); err != nil {
		return nil, err
	}
	return c.groupMutation(ctx, request{
		op:     "remove_member",
		method: http.MethodDelete,
		path:   "/api/groups/" + escape(groupID) + "/members/" + escape(email),
	})
}

// CancelInvite withdraws a pending invitation.
func (c *Client) CancelInvite(ctx context.Context, groupID, email string) (*models.Group, error) {
	if err := firstError(required("group", groupID), required("email", email)); err != nil {
		return nil, err
	}
	return c.groupMutation(ctx, request{
		op:     "cancel_invite",
		method: http.MethodDelete,
		path:   "/api/groups/" + escape(groupID) + "/invites/" + escape(email),
	})
}

func (c *Client) groupMutation(ctx context.Context, r request) (*models.Group, error) {
	var group models.Group
	ok, err := c.do(ctx, r, &group)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &group, nil
}

func dedupe(emails []string) []string {
	seen := make(map[string]bool, len(emails))
	var out []string
	for _, e := range emails {
		e = strings.TrimSpace(e)
		key := strings.ToLower(e)
		if e == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

// Failures renders the failed member additions, sorted by email.
func (r *CreateGroupResult) Failures() []string {
	out := make([]string, 0, len(r.Failed))
	for email, err := range r.Failed {
		out = append(out, fmt.Sprintf("%s: %s", email, UserMessage(err)))
	}
	slices.Sort(out)
	return out
}
