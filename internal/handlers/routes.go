package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// API bundles the handlers mounted under /api/v1.
type API struct {
	Auth         *AuthHandler
	Company      *CompanyHandler
	Accounts     *AccountHandler
	Partners     *PartnerHandler
	Transactions *TransactionHandler
	Users        *UserHandler
	Health       *HealthHandler
}

// Routes registers the public and the authenticated endpoints on r.
func (a *API) Routes(r chi.Router, auth func(http.Handler) http.Handler) {
	// Public endpoints (no auth required)
	r.Get("/health", a.Health.Health)
	r.Post("/auth/register", a.Auth.Register)
	r.Post("/auth/login", a.Auth.Login)

	// Protected endpoints (auth required)
	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Post("/auth/logout", a.Auth.Logout)
		r.Get("/auth/me", a.Auth.Me)

		r.Get("/company", a.Company.GetCompany)
		r.Put("/company", a.Company.RenameCompany)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", a.Accounts.ListAccounts)
			r.Post("/", a.Accounts.CreateAccount)
			r.Get("/{accountId}", a.Accounts.GetAccount)
			r.Put("/{accountId}", a.Accounts.UpdateAccount)
			r.Delete("/{accountId}", a.Accounts.DeleteAccount)
		})

		r.Route("/partners", func(r chi.Router) {
			r.Get("/", a.Partners.ListPartners)
			r.Post("/", a.Partners.CreatePartner)
			r.Get("/{partnerId}", a.Partners.GetPartner)
			r.Put("/{partnerId}", a.Partners.UpdatePartner)
			r.Delete("/{partnerId}", a.Partners.DeletePartner)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", a.Transactions.ListTransactions)
			r.Post("/", a.Transactions.PostTransaction)
			r.Get("/{transactionId}", a.Transactions.GetTransaction)
			r.Delete("/{transactionId}", a.Transactions.DeleteTransaction)
		})

		r.Delete("/users/{userId}", a.Users.DeleteUser)
	})
}
