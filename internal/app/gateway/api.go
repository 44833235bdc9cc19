package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"xalvion/internal/app/model"
	"xalvion/internal/pkg/errs"
)

// AuthResult is what login and registration return.
type AuthResult struct {
	Credential string         `json:"access_token"`
	Identity   model.Identity `json:"user"`
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// Login exchanges username and password for a credential. Any rejection is an AuthError.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	body := map[string]string{"username": username, "password": password}

	out := &AuthResult{}
	if err := c.do(ctx, "login", http.MethodPost, "/api/auth/login", body, out); err != nil {
		return nil, authFailure(err)
	}
	if out.Credential == "" {
		return nil, errs.NewError(errs.ErrDecodeResponse)
	}
	return out, nil
}

// Register creates an account and signs it in. Any rejection is an AuthError.
func (c *Client) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if strings.TrimSpace(in.Username) == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, errs.NewError(errs.ErrInvalidParams)
	}

	out := &AuthResult{}
	if err := c.do(ctx, "register", http.MethodPost, "/api/auth/register", in, out); err != nil {
		return nil, authFailure(err)
	}
	if out.Credential == "" {
		return nil, errs.NewError(errs.ErrDecodeResponse)
	}
	return out, nil
}

// authFailure turns any non-2xx answer to an auth call into ErrInvalidCredentials.
// Transport and decode failures are returned unchanged.
func authFailure(err error) error {
	customErr, ok := errs.As(err)
	if !ok || customErr.Status == 0 || customErr.Code == errs.ErrDecodeResponse {
		return err
	}

	authErr := errs.NewError(errs.ErrInvalidCredentials)
	authErr.Status = customErr.Status
	authErr.Body = customErr.Body
	if detail := errs.ResponseDetail([]byte(customErr.Body)); detail != "" {
		authErr.Message = detail
	}
	return authErr
}

// GetProfile fetches the signed-in user's profile.
func (c *Client) GetProfile(ctx context.Context) (*model.Identity, error) {
	out := &model.Identity{}
	if err := c.do(ctx, "get_profile", http.MethodGet, "/api/user/profile", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPresence fetches the backend's presence map, keyed by user id.
func (c *Client) GetPresence(ctx context.Context) (map[string]model.Presence, error) {
	var out struct {
		Presence map[string]model.Presence `json:"presence"`
	}
	if err := c.do(ctx, "get_presence", http.MethodGet, "/api/user/presence", nil, &out); err != nil {
		return nil, err
	}
	if out.Presence == nil {
		out.Presence = map[string]model.Presence{}
	}
	return out.Presence, nil
}

// ListServers returns the servers the user is a member of, in backend order.
func (c *Client) ListServers(ctx context.Context) ([]model.Server, error) {
	var out struct {
		Servers []model.Server `json:"servers"`
	}
	if err := c.do(ctx, "list_servers", http.MethodGet, "/api/servers", nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out.Servers), nil
}

// ListChannels returns the channels of serverID.
func (c *Client) ListChannels(ctx context.Context, serverID string) ([]model.Channel, error) {
	var out struct {
		Channels []model.Channel `json:"channels"`
	}
	path := "/api/servers/" + url.PathEscape(serverID) + "/channels"
	if err := c.do(ctx, "list_channels", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out.Channels), nil
}

// ListMessages returns the most recent messages of channelID, oldest first.
func (c *Client) ListMessages(ctx context.Context, channelID string) ([]model.Message, error) {
	var out struct {
		Messages []model.Message `json:"messages"`
	}
	path := "/api/channels/" + url.PathEscape(channelID) + "/messages?limit=" + strconv.Itoa(c.historyLimit)
	if err := c.do(ctx, "list_messages", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out.Messages), nil
}

// SendMessage posts content to channelID. Content that is empty after trimming is
// rejected before any request. The returned message is nil when the backend's answer
// does not carry one.
func (c *Client) SendMessage(ctx context.Context, channelID, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errs.NewError(errs.ErrEmptyContent)
	}
	if channelID == "" {
		return nil, errs.NewError(errs.ErrNoActiveChannel)
	}

	body := map[string]string{
		"channel_id":   channelID,
		"content":      content,
		"message_type": "text",
	}

	out := &model.Message{}
	if err := c.do(ctx, "send_message", http.MethodPost, "/api/messages", body, out); err != nil {
		return nil, err
	}
	if out.MessageID == "" {
		return nil, nil
	}
	if out.ChannelID == "" {
		out.ChannelID = channelID
	}
	return out, nil
}

// CreateServer creates a server owned by the user.
func (c *Client) CreateServer(ctx context.Context, name, description string) (*model.Server, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.NewError(errs.ErrEmptyName)
	}

	body := map[string]any{"name": name}
	if description != "" {
		body["description"] = description
	}

	out := &model.Server{}
	if err := c.do(ctx, "create_server", http.MethodPost, "/api/servers", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateChannel creates a text or voice channel in serverID.
func (c *Client) CreateChannel(ctx context.Context, serverID, name string, channelType model.ChannelType, description string) (*model.Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.NewError(errs.ErrEmptyName)
	}
	if !channelType.Valid() {
		return nil, errs.NewError(errs.ErrInvalidChannelType, string(channelType))
	}
	if serverID == "" {
		return nil, errs.NewError(errs.ErrInvalidParams)
	}

	body := map[string]any{
		"server_id":    serverID,
		"name":         name,
		"channel_type": channelType,
	}
	if description != "" {
		body["description"] = description
	}

	out := &model.Channel{}
	if err := c.do(ctx, "create_channel", http.MethodPost, "/api/channels", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddReaction places emoji on messageID.
func (c *Client) AddReaction(ctx context.Context, messageID, emoji string) error {
	return c.react(ctx, "add_reaction", messageID, emoji, "add")
}

// RemoveReaction takes the user's emoji off messageID.
func (c *Client) RemoveReaction(ctx context.Context, messageID, emoji string) error {
	return c.react(ctx, "remove_reaction", messageID, emoji, "remove")
}

func (c *Client) react(ctx context.Context, op, messageID, emoji, action string) error {
	if messageID == "" || strings.TrimSpace(emoji) == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}

	body := map[string]string{
		"message_id": messageID,
		"emoji":      emoji,
		"action":     action,
	}
	path := "/api/messages/" + url.PathEscape(messageID) + "/reactions"
	return c.do(ctx, op, http.MethodPost, path, body, nil)
}

// Health checks that the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/api/health", nil, nil)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
