package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"cardsync/internal/metadata"
	"cardsync/internal/services"
	"cardsync/internal/services/cardserver"
)

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// login authenticates against the card server. Non-200 responses, parse
// failures, and a missing token all fail the same way and leave the session
// without a token.
func (r *Resolver) login(ctx context.Context) (Event, error) {
	r.transport.SetToken("")
	payload, err := json.Marshal(loginRequest{Login: r.settings.Username, Password: r.settings.Password})
	if err != nil {
		return EventFailed, r.wrap(services.ErrLoginFailed, "encode credentials", "", err)
	}
	status, err := r.transport.Post(ctx, cardserver.LoginPath, payload)
	if err != nil {
		return EventFailed, r.wrap(services.ErrLoginFailed, "post credentials", "request failed", err)
	}
	if status != http.StatusOK {
		return EventFailed, r.wrap(services.ErrLoginFailed, "post credentials", fmt.Sprintf("server returned status %d", status), nil)
	}
	obj, err := metadata.Parse(r.transport.ResponseBody(), r.settings.MaxResponseBytes)
	if err != nil {
		return EventFailed, r.wrap(services.ErrLoginFailed, "decode login response", "", parseFailure(err))
	}
	token, ok := obj.String("token")
	if !ok || strings.TrimSpace(token) == "" {
		return EventFailed, r.wrap(services.ErrLoginFailed, "decode login response", "response has no token", nil)
	}
	r.session.AuthToken = token
	r.transport.SetToken(token)
	return EventLoginSucceeded, nil
}

// checkTag asks the card server whether it knows the current tag.
func (r *Resolver) checkTag(ctx context.Context) (Event, error) {
	status, err := r.transport.Get(ctx, cardserver.CardPath(r.session.TagID))
	if err != nil {
		return EventFailed, r.wrap(services.ErrTagNotFound, "lookup tag", "request failed", err)
	}
	if status != http.StatusOK {
		return EventFailed, r.wrap(services.ErrTagNotFound, "lookup tag", fmt.Sprintf("server returned status %d", status), nil)
	}
	return EventTagFound, nil
}
