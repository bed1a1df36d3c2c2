package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insidelm/backend/internal/core/coretest"
	"github.com/insidelm/backend/internal/models"
)

func TestCreateNotebook(t *testing.T) {
	store := coretest.NewFakeStore()
	store.Books["b1"] = models.Book{ID: "b1", Title: "Roman History"}
	svc := NewNotebookService(store, 10, nil)

	nb, err := svc.Create(context.Background(), "u1", CreateNotebookRequest{
		Name:           "Ancient Rome",
		SelectedBooks:  []string{"b1"},
		SelectedGenres: []models.Genre{models.GenreHistory},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, nb.ID)
	assert.Equal(t, "u1", nb.UserID)
	assert.Empty(t, nb.MemorySummary, "new notebooks start with empty memory")
	assert.Empty(t, nb.KeyFacts)

	stored, err := store.GetNotebookByID(context.Background(), nb.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, []string{"b1"}, stored.SelectedBooks)
}

func TestCreateNotebookValidation(t *testing.T) {
	store := coretest.NewFakeStore()
	svc := NewNotebookService(store, 10, nil)

	t.Run("missing name", func(t *testing.T) {
		_, err := svc.Create(context.Background(), "u1", CreateNotebookRequest{})
		assert.Error(t, err)
	})
	t.Run("unknown genre", func(t *testing.T) {
		_, err := svc.Create(context.Background(), "u1", CreateNotebookRequest{
			Name: "nb", SelectedGenres: []models.Genre{"thriller"},
		})
		assert.Error(t, err)
	})
	t.Run("nonexistent book", func(t *testing.T) {
		_, err := svc.Create(context.Background(), "u1", CreateNotebookRequest{
			Name: "nb", SelectedBooks: []string{"ghost"},
		})
		assert.Error(t, err)
	})
}

func TestNotebookSummary(t *testing.T) {
	store := coretest.NewFakeStore()
	store.Books["b1"] = models.Book{ID: "b1", Title: "Roman History"}
	store.Notebooks["n1"] = models.Notebook{
		ID: "n1", UserID: "u1", Name: "nb",
		SelectedBooks: []string{"b1"}, MemorySummary: "summary",
	}
	store.Messages = append(store.Messages, models.ChatMessage{
		ID: "m1", NotebookID: "n1", UserMessage: "q", AssistantResponse: "a",
	})
	svc := NewNotebookService(store, 10, nil)

	sum, err := svc.Summary(context.Background(), "n1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "summary", sum.Notebook.MemorySummary)
	require.Len(t, sum.Books, 1)
	assert.Equal(t, "Roman History", sum.Books[0].Title)
	assert.Len(t, sum.ChatMessages, 1)
}

func TestNotebookSummaryScopedToUser(t *testing.T) {
	store := coretest.NewFakeStore()
	store.Notebooks["n1"] = models.Notebook{ID: "n1", UserID: "u1", Name: "nb"}
	svc := NewNotebookService(store, 10, nil)

	_, err := svc.Summary(context.Background(), "n1", "someone-else")
	assert.ErrorIs(t, err, ErrNotebookNotFound)
}
