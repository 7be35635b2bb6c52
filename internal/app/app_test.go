package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wanotify/config"
	"github.com/talkincode/wanotify/internal/domain"
	"github.com/talkincode/wanotify/internal/repository"
	"github.com/talkincode/wanotify/internal/repository/repotest"
	"github.com/talkincode/wanotify/internal/whatsapp"
	"golang.org/x/crypto/bcrypt"
)

type nopClient struct {
	handler func(whatsapp.Event)
}

func (c *nopClient) HasCredentials() bool { return true }

func (c *nopClient) Connect(ctx context.Context) error {
	c.handler(whatsapp.ConnectionChanged{Kind: whatsapp.KindConnected})
	return nil
}

func (c *nopClient) Disconnect() {}

func (c *nopClient) SendText(ctx context.Context, identity, text string) error { return nil }

func (c *nopClient) PersistCredentials(ctx context.Context) error { return nil }

func (c *nopClient) SetEventHandler(h func(whatsapp.Event)) { c.handler = h }

func setupTestApp(t *testing.T) *Application {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	a := NewApplication(cfg)
	a.OverrideDB(repotest.NewDB(t))
	require.NoError(t, a.Wire(&nopClient{}))
	t.Cleanup(a.Release)
	return a
}

func TestSweepExpired(t *testing.T) {
	a := setupTestApp(t)
	ctx := context.Background()
	st := domain.StatusActive
	past := time.Now().Add(-time.Hour)
	_, err := a.Subscribers().Upsert(ctx, "201234567890", repository.SubscriberPatch{Status: &st, EndsAt: &past})
	require.NoError(t, err)

	n, err := a.SweepExpired()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	sub, err := a.Subscribers().Get(ctx, "201234567890")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, sub.Status)
}

func TestSessionStateIsRecorded(t *testing.T) {
	a := setupTestApp(t)
	require.NoError(t, a.Session().Connect(context.Background()))
	a.Bus().WaitAsync()

	logs, err := a.SessionLogs().Recent(context.Background(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, string(whatsapp.StateConnected), logs[0].Connectivity)
}

func TestCheckAdminHashesPassword(t *testing.T) {
	cfg := config.DefaultAppConfig()
	cfg.Web.AdminPassword = "secret"
	a := NewApplication(cfg)
	a.checkAdmin()
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(cfg.Web.AdminPassword), []byte("secret")))

	cfg.Web.AdminPassword = ""
	a.checkAdmin()
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(cfg.Web.AdminPassword), []byte(defaultAdminPassword)))
}
