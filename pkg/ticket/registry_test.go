package ticket

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/persistence"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/triage"
)

// registries returns one of each backend so every behaviour is checked on both.
func registries(t *testing.T) map[string]Registry {
	t.Helper()
	db, err := persistence.Open(persistence.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return map[string]Registry{
		"memory": NewMemoryRegistry(""),
		"sqlite": NewSQLiteRegistry(db, ""),
	}
}

func TestPrefixAndFormatID(t *testing.T) {
	assert.Equal(t, "BUG", Prefix("Bug"))
	assert.Equal(t, "FEA", Prefix("Feature"))
	assert.Equal(t, "INC", Prefix("incident"))
	assert.Equal(t, "QA", Prefix("qa"))
	assert.Equal(t, "QUE-7", FormatID("Question", 7))
}

func TestCreate(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first, err := reg.Create(ctx, CreateRequest{Title: "Checkout broken", Description: "mobile", Priority: triage.PriorityP2, Type: "Bug"})
			require.NoError(t, err)
			assert.True(t, first.Success)
			assert.Equal(t, "BUG-1", first.TicketID)
			assert.Equal(t, "https://jira.example.com/browse/BUG-1", first.TicketURL)
			assert.Equal(t, StatusOpen, first.Ticket.Status)
			assert.Nil(t, first.Ticket.Assignee)
			assert.Equal(t, triage.PriorityP2, first.Ticket.Priority)

			second, err := reg.Create(ctx, CreateRequest{Title: "Dark mode", Priority: triage.PriorityP3, Type: "Feature"})
			require.NoError(t, err)
			assert.Equal(t, "FEA-2", second.TicketID, "one counter shared across types")
		})
	}
}

func TestCreateDefaults(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			res, err := reg.Create(context.Background(), CreateRequest{})
			require.NoError(t, err)
			assert.Equal(t, "TAS-1", res.TicketID)
			assert.Equal(t, DefaultTitle, res.Ticket.Title)
			assert.Equal(t, triage.PriorityP3, res.Ticket.Priority)

			_, err = reg.Create(context.Background(), CreateRequest{Priority: "P7"})
			assert.Error(t, err)
		})
	}
}

func TestGet(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := reg.Create(ctx, CreateRequest{Title: "Site down", Priority: triage.PriorityP0, Type: "Incident"})
			require.NoError(t, err)

			got, err := reg.Get(ctx, created.TicketID)
			require.NoError(t, err)
			assert.Equal(t, created.Ticket.Title, got.Title)
			assert.Equal(t, created.Ticket.URL, got.URL)
			assert.WithinDuration(t, created.Ticket.CreatedAt, got.CreatedAt, time.Millisecond)

			_, err = reg.Get(ctx, "BUG-999")
			assert.ErrorIs(t, err, ErrTicketNotFound)
		})
	}
}

func TestSearch(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, title := range []string{"Checkout button broken", "Dark mode", "CHECKOUT slow", "Login page"} {
				_, err := reg.Create(ctx, CreateRequest{Title: title, Description: "reported by user", Type: "Bug"})
				require.NoError(t, err)
			}

			results, err := reg.Search(ctx, "checkout", 10)
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.Equal(t, "BUG-1", results[0].ID)
			assert.Equal(t, "BUG-3", results[1].ID)

			results, err = reg.Search(ctx, "REPORTED", 3)
			require.NoError(t, err)
			assert.Len(t, results, 3, "capped at limit")

			results, err = reg.Search(ctx, "nothing like this", 10)
			require.NoError(t, err)
			assert.Empty(t, results)
		})
	}
}

func TestConcurrentCreateAssignsUniqueIDs(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			const n = 40
			var (
				wg  sync.WaitGroup
				mu  sync.Mutex
				ids = make(map[string]bool)
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					res, err := reg.Create(context.Background(), CreateRequest{Title: fmt.Sprintf("t%d", i), Type: "Bug"})
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					ids[res.TicketID] = true
					mu.Unlock()
				}(i)
			}
			wg.Wait()
			assert.Len(t, ids, n)
		})
	}
}

func TestMemoryRegistryReturnsCopies(t *testing.T) {
	reg := NewMemoryRegistry("https://tracker.internal/browse/")
	res, err := reg.Create(context.Background(), CreateRequest{Title: "original", Type: "Bug"})
	require.NoError(t, err)
	assert.Equal(t, "https://tracker.internal/browse/BUG-1", res.TicketURL)

	res.Ticket.Title = "mutated"
	got, err := reg.Get(context.Background(), "BUG-1")
	require.NoError(t, err)
	assert.Equal(t, "original", got.Title)
}

func TestSQLiteRegistryNumberingSurvivesReopen(t *testing.T) {
	path := t.TempDir() + "/tickets.db"
	db, err := persistence.Open(path)
	require.NoError(t, err)
	_, err = NewSQLiteRegistry(db, "").Create(context.Background(), CreateRequest{Title: "a", Type: "Bug"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = persistence.Open(path)
	require.NoError(t, err)
	defer db.Close()
	res, err := NewSQLiteRegistry(db, "").Create(context.Background(), CreateRequest{Title: "b", Type: "Feature"})
	require.NoError(t, err)
	assert.Equal(t, "FEA-2", res.TicketID)
}
