package handlers

import (
	"context"
	"net/http"

	"github.com/melizondo/voltcart/internal/models"
	pkghttp "github.com/melizondo/voltcart/pkg/http"
)

// ChallengeIssuer defines the interface for issuing verification challenges
type ChallengeIssuer interface {
	Issue(ctx context.Context) (models.Challenge, error)
}

// ChallengeHandler serves human-verification challenges for the public
// checkout form. Each render of the form fetches a fresh challenge.
type ChallengeHandler struct {
	service ChallengeIssuer
}

// NewChallengeHandler creates a new ChallengeHandler
func NewChallengeHandler(service ChallengeIssuer) *ChallengeHandler {
	return &ChallengeHandler{service: service}
}

// ChallengeResponse is the challenge as shown to the client; the answer
// never leaves the server.
type ChallengeResponse struct {
	ChallengeID string `json:"challenge_id"`
	Question    string `json:"question"`
}

// New issues a fresh challenge
func (h *ChallengeHandler) New(w http.ResponseWriter, r *http.Request) {
	ch, err := h.service.Issue(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Could not issue challenge")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, ChallengeResponse{
		ChallengeID: ch.ID,
		Question:    ch.Question,
	})
}
