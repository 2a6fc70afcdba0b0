package tenantgate

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// readTokenSQL keeps the original selection literally, including the
// valid_until <= now() comparison direction.
const readTokenSQL = `
SELECT token
FROM etrx_token_info
WHERE valid_until <= now()
  AND middleware_provider ILIKE '%drive%'
LIMIT 1;
`

// ReadOAuthToken returns the stored middleware OAuth token for the drive
// provider, or the empty string if none exists.
func (g *Gateway) ReadOAuthToken(ctx context.Context) (string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(g.config.Query.DefaultTimeoutSeconds)*time.Second)
	defer cancel()

	var token string
	err := g.pool.QueryRow(queryCtx, readTokenSQL).Scan(&token)
	if err == pgx.ErrNoRows {
		g.logger.Error().Msg("no OAuth token found in the database")
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// ReadOAuthTokenWebhook adapts ReadOAuthToken to the flat webhook shape.
func (g *Gateway) ReadOAuthTokenWebhook(ctx context.Context, sctx SecurityContext, params map[string]string) map[string]string {
	g.logParams("ReadOAuthToken", params)

	token, err := g.ReadOAuthToken(ctx)
	if err != nil {
		return g.errorResponse(err)
	}
	return map[string]string{"token": token}
}
