package bot

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"vendhub-bot/pkg/apierror"
	"vendhub-bot/pkg/response"
)

// IntentEndpoint returns the HTTP handler the gateway posts parsed
// interactions to. It shares the gateway token with the outbound
// webhook client.
func IntentEndpoint(b *Bot, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				response.Error(w, apierror.Unauthorized("invalid gateway token"))
				return
			}
		}

		var in Intent
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			response.Error(w, apierror.BadRequest("invalid intent payload"))
			return
		}
		defer r.Body.Close()

		if in.Kind == "" || in.UserID == "" {
			response.Error(w, apierror.BadRequest("kind and user_id are required"))
			return
		}

		if err := b.HandleIntent(r.Context(), in); err != nil {
			log.Printf("[Bot] Intent %s from %s failed: %v", in.Kind, in.UserID, err)
			response.Error(w, apierror.InternalError("intent handling failed"))
			return
		}

		response.OK(w, map[string]string{"status": "handled"})
	}
}
