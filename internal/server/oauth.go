package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// AuthResult is the outcome of one authorization callback: a token pair on
// success, an error otherwise.
type AuthResult struct {
	Token *oauth2.Token
	err   error
}

func (r AuthResult) Error() error { return r.err }

// CallbackHandler handles the OAuth2 authorization-code callback. It accepts
// exactly one callback; later hits get a 400.
type CallbackHandler struct {
	config *oauth2.Config
	state  string

	mu      sync.Mutex
	handled bool

	once    sync.Once
	results chan AuthResult
}

// NewCallbackHandler creates a callback handler bound to an OAuth2 config and
// a CSRF state token. The state must be unguessable; see [shared.GenerateID].
func NewCallbackHandler(config *oauth2.Config, state string) *CallbackHandler {
	return &CallbackHandler{
		config:  config,
		state:   state,
		results: make(chan AuthResult, 1),
	}
}

// Result returns the channel the single authorization result arrives on.
// The channel is closed after delivery.
func (h *CallbackHandler) Result() <-chan AuthResult {
	return h.results
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.handled {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.handled = true
	h.mu.Unlock()

	query := r.URL.Query()
	if query.Get("state") != h.state {
		h.deliver(AuthResult{err: fmt.Errorf("state parameter mismatch")})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.deliver(AuthResult{err: fmt.Errorf("authorization denied: %s - %s",
			query.Get("error"), query.Get("error_description"))})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.config.Exchange(r.Context(), code)
	if err != nil {
		h.deliver(AuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.deliver(AuthResult{Token: token})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

func (h *CallbackHandler) deliver(result AuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Cancel delivers a failure result if the callback never arrived, unblocking
// any waiter.
func (h *CallbackHandler) Cancel(ctx context.Context) {
	h.deliver(AuthResult{err: fmt.Errorf("authorization not completed: %w", ctx.Err())})
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>&#10003; Authorization Successful</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`
