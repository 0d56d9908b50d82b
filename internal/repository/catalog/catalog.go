// Package catalog describes movie and episode metadata looked up by slug.
package catalog

import (
	"context"
	"errors"
)

var (
	ErrMovieNotFound   = errors.New("movie not found")
	ErrEpisodeNotFound = errors.New("episode not found")
)

type Episode struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type Movie struct {
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	PosterUrl string    `json:"posterUrl,omitempty"`
	Episodes  []Episode `json:"episodes,omitempty"`
}

// Episode resolves an episode of m. An empty slug selects the first episode.
// Movies without an episode list accept any slug.
func (m Movie) Episode(slug string) (Episode, error) {
	if len(m.Episodes) == 0 {
		if slug == "" {
			slug = "1"
		}
		return Episode{Slug: slug, Name: slug}, nil
	}

	if slug == "" {
		return m.Episodes[0], nil
	}

	for _, ep := range m.Episodes {
		if ep.Slug == slug {
			return ep, nil
		}
	}

	return Episode{}, ErrEpisodeNotFound
}

// Passthrough accepts every slug. It is used when no catalog database is configured.
type Passthrough struct{}

func (Passthrough) Movie(_ context.Context, slug string) (Movie, error) {
	if slug == "" {
		return Movie{}, ErrMovieNotFound
	}

	return Movie{Slug: slug, Title: slug}, nil
}
