package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/response"
)

func TestClientService_CreateClient(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.clients.CreateClient(env.ctx(), &dto.ClientRequest{
		CompanyName:  "  Acme Logistics ",
		ContactName:  "Dana Ortiz",
		ContactEmail: " Dana@Acme.COM ",
		City:         "Austin",
		State:        "TX",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Logistics", resp.CompanyName)
	assert.Equal(t, "dana@acme.com", resp.ContactEmail)
	assert.Equal(t, "PROSPECT", resp.Status)
	assert.Equal(t, "USA", resp.Country)
	assert.Zero(t, resp.DealCount)
	require.NotNil(t, resp.CreatedByID)
	assert.Equal(t, env.actor, *resp.CreatedByID)

	tests := []struct {
		name string
		req  dto.ClientRequest
	}{
		{"blank company", dto.ClientRequest{CompanyName: " "}},
		{"unknown status", dto.ClientRequest{CompanyName: "x", Status: "VIP"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := env.clients.CreateClient(env.ctx(), &req)
			requireAppError(t, err, response.ErrCodeValidation)
		})
	}
}

func TestClientService_ListClients_DealStats(t *testing.T) {
	env := newTestEnv(t)
	acme := env.seedClient(t, "Acme")
	env.seedClient(t, "Globex")
	env.seedDeal(t, acme, "Roof", 100)
	env.seedDeal(t, acme, "Gutters", 250)

	list, err := env.clients.ListClients(env.ctx(), &dto.ClientFilters{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Total)
	assert.Equal(t, dto.DefaultPageSize, list.PageSize)

	byName := map[string]dto.ClientResponse{}
	for _, c := range list.Clients {
		byName[c.CompanyName] = c
	}
	assert.Equal(t, int64(2), byName["Acme"].DealCount)
	assert.True(t, decimal.NewFromInt(350).Equal(byName["Acme"].DealValue))
	assert.Zero(t, byName["Globex"].DealCount)

	one, err := env.clients.GetClient(env.ctx(), acme.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), one.DealCount)

	_, err = env.clients.ListClients(env.ctx(), &dto.ClientFilters{Status: "GONE"})
	requireAppError(t, err, response.ErrCodeValidation)
}

func TestClientService_SearchClients(t *testing.T) {
	env := newTestEnv(t)
	env.seedClient(t, "Acme Roofing")
	env.seedClient(t, "Globex")

	results, err := env.clients.SearchClients(env.ctx(), "a")
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = env.clients.SearchClients(env.ctx(), "roof")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Acme Roofing", results[0].CompanyName)
}

func TestClientService_UpdateClient(t *testing.T) {
	env := newTestEnv(t)
	acme := env.seedClient(t, "Acme")

	resp, err := env.clients.UpdateClient(env.ctx(), acme.ID, &dto.ClientRequest{CompanyName: "Acme Corp", Status: "inactive"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", resp.CompanyName)
	assert.Equal(t, "INACTIVE", resp.Status)

	_, err = env.clients.UpdateClient(env.ctx(), uuid.New(), &dto.ClientRequest{CompanyName: "x"})
	requireAppError(t, err, response.ErrCodeNotFound)
}

func TestClientService_DeleteClient(t *testing.T) {
	env := newTestEnv(t)
	acme := env.seedClient(t, "Acme")
	idle := env.seedClient(t, "Idle")
	d := env.seedDeal(t, acme, "Roof", 100)

	err := env.clients.DeleteClient(env.ctx(), acme.ID)
	appErr := requireAppError(t, err, response.ErrCodeConflict)
	assert.Equal(t, "dealCount", appErr.Details)

	require.NoError(t, env.clients.DeleteClient(env.ctx(), idle.ID))
	_, err = env.clients.GetClient(env.ctx(), idle.ID)
	requireAppError(t, err, response.ErrCodeNotFound)

	require.NoError(t, env.deals.DeleteDeal(env.ctx(), d.ID))
	require.NoError(t, env.clients.DeleteClient(env.ctx(), acme.ID))
}
