package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers mounted under /api.
type Handlers struct {
	Accounts      *AccountHandler
	Subscriptions *SubscriptionHandler
	Credits       *CreditHandler
}

// Mount registers the API routes on r. Credit routes are wrapped with authenticate.
func (h Handlers) Mount(r chi.Router, authenticate func(http.Handler) http.Handler) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/accounts/register", h.Accounts.Register)
		r.Post("/accounts/verify-email", h.Accounts.VerifyEmail)
		r.Post("/accounts/resend-code", h.Accounts.ResendCode)

		r.Post("/subscriptions", h.Subscriptions.Subscribe)
		r.Post("/subscriptions/{id}/complete", h.Subscriptions.CompletePayment)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/credits", h.Credits.Balance)
			r.Post("/credits/consume", h.Credits.Consume)
		})
	})
}
