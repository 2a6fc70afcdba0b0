package tenantgate

import (
	"context"
	"encoding/json"
	"errors"
)

// AvailableAgentsWebhook lists the assistants available to the caller via
// the configured AgentLister collaborator under the "agents" field.
func (g *Gateway) AvailableAgentsWebhook(ctx context.Context, sctx SecurityContext, params map[string]string) map[string]string {
	g.logParams("GetAvailableAgents", params)

	if g.agents == nil {
		return g.errorResponse(errors.New("agent service not configured"))
	}
	agents, err := g.agents.ListAgents(ctx)
	if err != nil {
		return g.errorResponse(err)
	}
	if agents == nil {
		agents = []Agent{}
	}
	b, err := json.Marshal(agents)
	if err != nil {
		return g.errorResponse(err)
	}
	return map[string]string{"agents": string(b)}
}
