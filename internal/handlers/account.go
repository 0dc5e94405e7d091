package handlers

import (
	"net/http"

	"eventcraft/internal/models"
	"eventcraft/internal/prompt"
	"eventcraft/internal/providers"
)

// creditsView is the body of GET /api/v1/credits.
type creditsView struct {
	Balance      int                  `json:"balance"`
	CostPerImage int                  `json:"cost_per_image"`
	Ledger       []models.LedgerEntry `json:"ledger"`
}

// Credits handles GET /api/v1/credits: the balance and the most recent
// ledger entries (limit, default 50).
func (a *API) Credits(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	balance, err := a.accounts.Balance(r.Context(), user.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	ledger, err := a.credits.Ledger(r.Context(), user.ID, limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	if ledger == nil {
		ledger = []models.LedgerEntry{}
	}

	writeJSON(w, http.StatusOK, creditsView{
		Balance:      balance,
		CostPerImage: a.gens.Cost(),
		Ledger:       ledger,
	})
}

// providerView describes one configured provider to API clients.
type providerView struct {
	Name           string   `json:"name"`
	Model          string   `json:"model"`
	Default        bool     `json:"default"`
	Status         string   `json:"status"`
	AspectRatios   []string `json:"aspect_ratios"`
	NegativePrompt bool     `json:"negative_prompt"`
	Styles         bool     `json:"styles"`
	Seed           bool     `json:"seed"`
	MaxImages      int      `json:"max_images"`
}

// providerList is the body of GET /api/v1/providers.
type providerList struct {
	Default      string         `json:"default"`
	Providers    []providerView `json:"providers"`
	Styles       []string       `json:"styles"`
	AspectRatios []string       `json:"aspect_ratios"`
}

// Providers handles GET /api/v1/providers.
func (a *API) Providers(w http.ResponseWriter, r *http.Request) {
	reg := a.providers.Registry()
	defaultName := reg.DefaultName()

	status := make(map[string]string)
	for _, h := range a.providers.Status() {
		status[h.Name] = h.Status
	}

	views := []providerView{}
	for _, p := range reg.Ordered() {
		caps := p.Capabilities()
		ratios := caps.AspectRatios
		if len(ratios) == 0 {
			ratios = providers.AllAspectRatios
		}
		views = append(views, providerView{
			Name:           p.Name(),
			Model:          p.Model(),
			Default:        p.Name() == defaultName,
			Status:         status[p.Name()],
			AspectRatios:   ratios,
			NegativePrompt: caps.NegativePrompt,
			Styles:         caps.Styles,
			Seed:           caps.Seed,
			MaxImages:      caps.MaxImages,
		})
	}

	writeJSON(w, http.StatusOK, providerList{
		Default:      defaultName,
		Providers:    views,
		Styles:       prompt.Styles(),
		AspectRatios: providers.AllAspectRatios,
	})
}
