package fake

import (
	"context"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/ai"
	"github.com/tiqology/superapp-go/auth"
	"github.com/tiqology/superapp-go/dashboard"
	"github.com/tiqology/superapp-go/gateway"
	"github.com/tiqology/superapp-go/ghost"
	"github.com/tiqology/superapp-go/organization"
	"github.com/tiqology/superapp-go/session"
	"github.com/tiqology/superapp-go/storage"
)

// NewClient creates a *tiqology.Client whose services talk to the backend at
// baseURL, with an in-memory session store. The Ghost gateway is addressed at
// baseURL+GhostPath and sent apiKey when it is not empty.
func NewClient(baseURL, apiKey string) (*tiqology.Client, error) {
	authn := auth.New(gateway.New(baseURL, gateway.WithName("auth")))
	store := session.New(authn, storage.NewMemory())
	if err := store.Restore(context.Background()); err != nil {
		return nil, err
	}

	api := gateway.New(baseURL, gateway.WithTokenSource(store))
	aiGW := gateway.New(baseURL, append(ai.GatewayOptions(), gateway.WithTokenSource(store))...)

	return tiqology.NewClient(
		tiqology.Config{
			APIBaseURL:  baseURL,
			GhostURL:    baseURL + GhostPath,
			GhostAPIKey: apiKey,
		},
		tiqology.WithAuthenticator(authn),
		tiqology.WithSessionManager(store),
		tiqology.WithOrganizationService(organization.New(api)),
		tiqology.WithDashboardService(dashboard.New(api)),
		tiqology.WithAssistant(ai.New(aiGW)),
		tiqology.WithEvaluator(ghost.New(baseURL+GhostPath, ghost.WithAPIKey(apiKey))),
	)
}
