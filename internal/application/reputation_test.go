package application

import (
	"context"
	"sync"
	"testing"

	"github.com/stoik/phishing-detector/internal/adapters/storage"
	"github.com/stoik/phishing-detector/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReputationStore_WhitelistWins(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(s *ReputationStore)
	}{
		{"from unknown", func(s *ReputationStore) {}},
		{"from malicious", func(s *ReputationStore) { s.MarkMalicious(ctx, "evil.test") }},
		{"already whitelisted", func(s *ReputationStore) { s.Whitelist(ctx, "evil.test") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewReputationStore(storage.NewMemoryStore())
			tt.setup(s)

			require.NoError(t, s.Whitelist(ctx, "evil.test"))

			status, err := s.Lookup(ctx, "evil.test")
			require.NoError(t, err)
			assert.Equal(t, domain.ReputationWhitelisted, status)

			malicious, err := s.ListMalicious(ctx)
			require.NoError(t, err)
			assert.NotContains(t, malicious, "evil.test")

			changed, err := s.MarkMalicious(ctx, "evil.test")
			require.NoError(t, err)
			assert.False(t, changed)
			status, _ = s.Lookup(ctx, "evil.test")
			assert.Equal(t, domain.ReputationWhitelisted, status)
		})
	}
}

func TestReputationStore_RemoveWhitelistNeverRestoresMalicious(t *testing.T) {
	ctx := context.Background()
	s := NewReputationStore(storage.NewMemoryStore())

	changed, err := s.MarkMalicious(ctx, "evil.test")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.MarkMalicious(ctx, "evil.test")
	require.NoError(t, err)
	assert.False(t, changed, "marking twice is a no-op")

	require.NoError(t, s.Whitelist(ctx, "evil.test"))
	require.NoError(t, s.RemoveWhitelist(ctx, "evil.test"))
	require.NoError(t, s.RemoveWhitelist(ctx, "evil.test"))

	status, err := s.Lookup(ctx, "evil.test")
	require.NoError(t, err)
	assert.Equal(t, domain.ReputationUnknown, status)

	lists, err := s.Lists(ctx)
	require.NoError(t, err)
	assert.Empty(t, lists.Malicious)
	assert.Empty(t, lists.Whitelisted)
}

func TestReputationStore_RemoveWhitelistKeepsMalicious(t *testing.T) {
	ctx := context.Background()
	s := NewReputationStore(storage.NewMemoryStore())

	_, err := s.MarkMalicious(ctx, "evil.test")
	require.NoError(t, err)
	require.NoError(t, s.RemoveWhitelist(ctx, "evil.test"))

	status, err := s.Lookup(ctx, "evil.test")
	require.NoError(t, err)
	assert.Equal(t, domain.ReputationMalicious, status)
}

func TestReputationStore_NormalizesDomains(t *testing.T) {
	ctx := context.Background()
	s := NewReputationStore(storage.NewMemoryStore())

	require.NoError(t, s.Whitelist(ctx, "HTTPS://Example.COM:443/path?q=1"))
	_, err := s.MarkMalicious(ctx, "user@Evil.Test.")
	require.NoError(t, err)

	lists, err := s.Lists(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com"}, lists.Whitelisted)
	assert.Equal(t, []string{"evil.test"}, lists.Malicious)

	_, err = s.Lookup(ctx, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidDomain)
	assert.ErrorIs(t, s.Whitelist(ctx, ""), domain.ErrInvalidDomain)
}

func TestReputationStore_MatchesExactHostOnly(t *testing.T) {
	ctx := context.Background()
	s := NewReputationStore(storage.NewMemoryStore())
	_, err := s.MarkMalicious(ctx, "evil.test")
	require.NoError(t, err)
	require.NoError(t, s.Whitelist(ctx, "mail.partner.test"))

	tests := []struct {
		host     string
		expected domain.ReputationStatus
	}{
		{"evil.test", domain.ReputationMalicious},
		{"login.evil.test", domain.ReputationUnknown},
		{"mail.partner.test", domain.ReputationWhitelisted},
		{"partner.test", domain.ReputationUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			status, err := s.Lookup(ctx, tt.host)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, status)
		})
	}
}

func TestReputationStore_ListsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewReputationStore(storage.NewMemoryStore())

	for _, d := range []string{"c.test", "a.test", "b.test"} {
		_, err := s.MarkMalicious(ctx, d)
		require.NoError(t, err)
	}
	malicious, err := s.ListMalicious(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c.test", "a.test", "b.test"}, malicious)
}

func TestReputationStore_RetriesConflictOnce(t *testing.T) {
	ctx := context.Background()
	repo := &conflictingRepo{ReputationRepository: storage.NewMemoryStore(), conflict: true}
	s := NewReputationStore(repo)

	require.NoError(t, s.Whitelist(ctx, "a.test"))
	assert.Equal(t, 2, repo.puts)

	status, err := s.Lookup(ctx, "a.test")
	require.NoError(t, err)
	assert.Equal(t, domain.ReputationWhitelisted, status)
}

func TestReputationStore_ConcurrentEditsStayConsistent(t *testing.T) {
	ctx := context.Background()
	s := NewReputationStore(storage.NewMemoryStore())

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch i % 3 {
			case 0:
				s.MarkMalicious(ctx, "contested.test")
			case 1:
				s.Whitelist(ctx, "contested.test")
			default:
				s.RemoveWhitelist(ctx, "contested.test")
			}
		}()
	}
	wg.Wait()

	lists, err := s.Lists(ctx)
	require.NoError(t, err)
	inMalicious := len(lists.Malicious) == 1
	inWhitelist := len(lists.Whitelisted) == 1
	assert.False(t, inMalicious && inWhitelist, "a domain holds one status at most")

	// a final whitelist always wins, whatever the interleaving was
	require.NoError(t, s.Whitelist(ctx, "contested.test"))
	lists, err = s.Lists(ctx)
	require.NoError(t, err)
	assert.Empty(t, lists.Malicious)
	assert.Equal(t, []string{"contested.test"}, lists.Whitelisted)
}
