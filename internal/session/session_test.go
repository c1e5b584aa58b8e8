package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/planmarket/internal/client"
	"github.com/Windi-Fikriyansyah/planmarket/internal/devserver"
	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
)

func startServer(t *testing.T) *devserver.Server {
	t.Helper()
	srv, err := devserver.Start(devserver.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestSignUpRestoreSignOut(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	tokens := &MemoryTokenStore{}

	m := NewManager(client.New(srv.BaseURL()), tokens)
	assert.Equal(t, DestGuest, m.Destination())
	assert.False(t, m.Current().SignedIn())

	var seen []models.Role
	m.OnChange(func(s State) { seen = append(seen, s.Role) })

	st, err := m.SignUp(ctx, "Carla Customer", "carla@test.dev", "secret123", "")
	require.NoError(t, err)
	assert.True(t, st.SignedIn())
	assert.Equal(t, DestCustomer, m.Destination())
	saved, _ := tokens.Load()
	assert.Equal(t, st.Token, saved)

	// a fresh start restores from the stored token
	restored := NewManager(client.New(srv.BaseURL()), tokens)
	rs, err := restored.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, st.UserID, rs.UserID)
	assert.Equal(t, models.RoleCustomer, rs.Role)

	require.NoError(t, m.SignOut(ctx))
	assert.Equal(t, DestGuest, m.Destination())
	saved, _ = tokens.Load()
	assert.Empty(t, saved)
	assert.Equal(t, []models.Role{models.RoleCustomer, models.RoleGuest}, seen)
}

func TestAdvisorDestination(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	_, err := srv.CreateAdvisor(ctx, "ana@test.dev", "secret123", "Ana")
	require.NoError(t, err)

	m := NewManager(client.New(srv.BaseURL()), nil)
	_, err = m.SignIn(ctx, "ana@test.dev", "secret123")
	require.NoError(t, err)
	assert.Equal(t, DestAdvisor, m.Destination())

	_, err = m.SignIn(ctx, "ana@test.dev", "wrong")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, DestAdvisor, m.Destination())
}

func TestRestoreDropsRejectedToken(t *testing.T) {
	srv := startServer(t)
	tokens := &MemoryTokenStore{}
	require.NoError(t, tokens.Save("expired.or.forged"))

	api := client.New(srv.BaseURL())
	m := NewManager(api, tokens)
	st, err := m.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RoleGuest, st.Role)
	saved, _ := tokens.Load()
	assert.Empty(t, saved)
	assert.Empty(t, api.Token())
}

func TestRestoreWithoutProfileFallsBackToGuest(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	tokens := &MemoryTokenStore{}

	m := NewManager(client.New(srv.BaseURL()), tokens)
	st, err := m.SignUp(ctx, "Lost", "lost@test.dev", "secret123", "")
	require.NoError(t, err)
	srv.Store.DeleteProfile(st.UserID)

	again := NewManager(client.New(srv.BaseURL()), tokens)
	rs, err := again.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, DestGuest, again.Destination())
	assert.False(t, rs.SignedIn())
}

func TestFileTokenStore(t *testing.T) {
	s := FileTokenStore{Path: filepath.Join(t.TempDir(), "planctl", "token")}

	tok, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, s.Save("abc.def"))
	tok, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())
	tok, _ = s.Load()
	assert.Empty(t, tok)
}
