package handler

import (
	"net/http"

	"xalvion/internal/pkg/errs"
	"xalvion/internal/pkg/req"
	"xalvion/internal/pkg/resp"
)

type SendMessageInput struct {
	Content string `json:"content"`
}

// HandleSendMessage posts a message to the active channel.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input SendMessageInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		msg, err := deps.Engine.SendMessage(r.Context(), input.Content)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"message": msg,
		})
	}
}

type ReactionInput struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
	Action    string `json:"action"`
}

// HandleReaction adds or removes a reaction. The new reaction list arrives on the state stream.
func HandleReaction(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input ReactionInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var err error
		switch input.Action {
		case "", "add":
			err = deps.Engine.AddReaction(r.Context(), input.MessageID, input.Emoji)
		case "remove":
			err = deps.Engine.RemoveReaction(r.Context(), input.MessageID, input.Emoji)
		default:
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, nil)
	}
}

type InputEvent struct {
	Event string `json:"event"`
}

// HandleInput reports composer activity: "change" on every keystroke, "blur" on focus loss.
func HandleInput(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input InputEvent
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var err error
		switch input.Event {
		case "change":
			err = deps.Engine.InputChanged(r.Context())
		case "blur":
			err = deps.Engine.InputBlurred(r.Context())
		default:
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, nil)
	}
}
