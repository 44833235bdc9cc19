/*
Package handler provides HTTP handler functions for signing the local user in and out.
*/
package handler

import (
	"net/http"
	"strings"

	"xalvion/internal/app/gateway"
	"xalvion/internal/app/session"
	"xalvion/internal/pkg/errs"
	"xalvion/internal/pkg/logx"
	"xalvion/internal/pkg/req"
	"xalvion/internal/pkg/resp"
)

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin exchanges credentials for a session and starts syncing.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.Username = strings.TrimSpace(input.Username)
		if input.Username == "" || input.Password == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		identity, err := deps.Engine.Login(r.Context(), input.Username, input.Password)
		if err != nil {
			logx.Warn("login: rejected", "username", input.Username, "error", err.Error())
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"user": identity,
		})
	}
}

type RegisterInput struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// HandleRegister creates an account and signs in as it.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input RegisterInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.Username = strings.TrimSpace(input.Username)
		input.Email = strings.TrimSpace(input.Email)
		if input.Username == "" || input.Email == "" || input.Password == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		identity, err := deps.Engine.Register(r.Context(), gateway.RegisterInput{
			Username:    input.Username,
			Email:       input.Email,
			Password:    input.Password,
			DisplayName: strings.TrimSpace(input.DisplayName),
		})
		if err != nil {
			logx.Warn("register: rejected", "username", input.Username, "error", err.Error())
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"user": identity,
		})
	}
}

type PreferencesInput struct {
	Theme        string `json:"theme"`
	CustomStatus string `json:"custom_status"`
}

// HandleSetPreferences replaces the display preferences of the signed-in user.
func HandleSetPreferences(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input PreferencesInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		prefs := session.Preferences{
			Theme:        strings.TrimSpace(input.Theme),
			CustomStatus: strings.TrimSpace(input.CustomStatus),
		}
		if err := deps.Engine.SetPreferences(r.Context(), prefs); err != nil {
			resp.RespondErr(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, map[string]any{
			"preferences": prefs,
		})
	}
}

// HandleLogout ends the session and forgets the stored credential.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Engine.Logout(r.Context()); err != nil {
			logx.Error(err, "logout: failed")
			resp.RespondErr(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, nil)
	}
}
