package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovie_Episode(t *testing.T) {
	m := Movie{Slug: "show", Episodes: []Episode{{Slug: "s1e1"}, {Slug: "s1e2"}}}

	ep, err := m.Episode("")
	require.NoError(t, err)
	assert.Equal(t, "s1e1", ep.Slug)

	ep, err = m.Episode("s1e2")
	require.NoError(t, err)
	assert.Equal(t, "s1e2", ep.Slug)

	_, err = m.Episode("s9e9")
	assert.ErrorIs(t, err, ErrEpisodeNotFound)

	ep, err = Movie{Slug: "film"}.Episode("")
	require.NoError(t, err)
	assert.Equal(t, "1", ep.Slug)
}

func TestPassthrough(t *testing.T) {
	m, err := Passthrough{}.Movie(context.Background(), "dune")
	require.NoError(t, err)
	assert.Equal(t, "dune", m.Slug)

	_, err = Passthrough{}.Movie(context.Background(), "")
	assert.ErrorIs(t, err, ErrMovieNotFound)
}
