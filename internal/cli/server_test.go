package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/config"
	"quiz-room-service/internal/domain"
)

func TestQuorumPolicy(t *testing.T) {
	p, err := quorumPolicy("")
	require.NoError(t, err)
	assert.Equal(t, app.QuorumPresent, p)

	p, err = quorumPolicy("all")
	require.NoError(t, err)
	assert.Equal(t, app.QuorumAll, p)

	_, err = quorumPolicy("most")
	assert.Error(t, err)
}

func TestSampleSetsAreValid(t *testing.T) {
	for id, set := range sampleSets() {
		_, err := set.Normalize()
		assert.NoError(t, err, id)
	}
}

func TestSetLoaderPrefersSetsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sets:
  - id: flags
    questions:
      - prompt: Red and white with a maple leaf?
        choices: [{text: Canada}, {text: Peru}, {text: Japan}, {text: Austria}]
        correctIndex: 0
`), 0o600))

	var cfg config.Config
	cfg.Quiz.SetsFile = path
	loader, err := setLoader(cfg, nil)
	require.NoError(t, err)

	set, err := loader.LoadQuestionSet(context.Background(), "flags")
	require.NoError(t, err)
	assert.Len(t, set.Questions, 1)

	_, err = loader.LoadQuestionSet(context.Background(), "sample")
	assert.ErrorIs(t, err, domain.ErrQuestionSetNotFound)
}

func TestPublicURLFallsBackToLocalhost(t *testing.T) {
	var cfg config.Config
	assert.Equal(t, "http://localhost:8080", publicURL(cfg, "8080"))
	cfg.Server.PublicURL = "https://quiz.example.com"
	assert.Equal(t, "https://quiz.example.com", publicURL(cfg, "8080"))
}
