/*
Package handler provides HTTP handler functions for creating and navigating servers and channels.
*/
package handler

import (
	"net/http"
	"strings"

	"xalvion/internal/app/model"
	"xalvion/internal/pkg/errs"
	"xalvion/internal/pkg/req"
	"xalvion/internal/pkg/resp"
)

type CreateServerInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// HandleCreateServer creates a server and makes it active.
func HandleCreateServer(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CreateServerInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		server, err := deps.Engine.CreateServer(r.Context(), input.Name, input.Description)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"server": server,
		})
	}
}

type SelectServerInput struct {
	ServerID string `json:"server_id"`
}

// HandleSelectServer switches the active server.
func HandleSelectServer(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input SelectServerInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.ServerID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if err := deps.Engine.SelectServer(r.Context(), input.ServerID); err != nil {
			resp.RespondErr(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, nil)
	}
}

type CreateChannelInput struct {
	Name        string            `json:"name"`
	ChannelType model.ChannelType `json:"channel_type"`
	Description string            `json:"description,omitempty"`
}

// HandleCreateChannel creates a channel in the active server.
func HandleCreateChannel(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CreateChannelInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.ChannelType == "" {
			input.ChannelType = model.ChannelText
		}

		channel, err := deps.Engine.CreateChannel(r.Context(), strings.TrimSpace(input.Name), input.ChannelType, input.Description)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"channel": channel,
		})
	}
}

type SelectChannelInput struct {
	ChannelID string `json:"channel_id"`
}

// HandleSelectChannel switches the active channel within the active server.
func HandleSelectChannel(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input SelectChannelInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.ChannelID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if err := deps.Engine.SelectChannel(r.Context(), input.ChannelID); err != nil {
			resp.RespondErr(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, nil)
	}
}
