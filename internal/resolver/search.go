package resolver

import (
	"context"
	"errors"
	"strings"

	"karolbroda.com/overlyric/internal/track"
)

// artist list separators, matched case-insensitively
var artistSeparators = []string{" e ", " & ", " and ", " feat. ", " ft. ", " x "}

// stage is one relaxation step. Results of all its queries are unioned.
type stage struct {
	name    string
	queries []Query
}

// normalizeString trims and collapses runs of spaces.
func normalizeString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FirstArtist cuts an artist list at the first separator.
func FirstArtist(artist string) string {
	lower := strings.ToLower(artist)
	cut := len(artist)
	for _, sep := range artistSeparators {
		if idx := strings.Index(lower, sep); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return normalizeString(artist[:cut])
}

// FirstCommaArtist returns the artist before the first comma.
func FirstCommaArtist(artist string) string {
	first, _, _ := strings.Cut(artist, ",")
	return normalizeString(first)
}

func plan(info track.Info) []stage {
	title := normalizeString(info.Title)
	artist := normalizeString(info.Artist)
	album := normalizeString(info.Album)

	var stages []stage
	if artist != "" {
		stages = append(stages,
			stage{name: "title+artist+album", queries: []Query{{Title: title, Artist: artist, Album: album}}},
			stage{name: "title+artist", queries: []Query{{Title: title, Artist: artist}}},
			stage{name: "first artist", queries: []Query{
				{Title: title, Artist: FirstArtist(artist)},
				{Title: title, Artist: FirstCommaArtist(artist)},
			}},
		)
	}
	stages = append(stages, stage{name: "title", queries: []Query{{Title: title}}})

	seen := make(map[Query]bool)
	for i := range stages {
		kept := stages[i].queries[:0]
		for _, q := range stages[i].queries {
			if seen[q] || q.Title == "" {
				continue
			}
			if stages[i].name != "title" && q.Artist == "" {
				continue
			}
			seen[q] = true
			kept = append(kept, q)
		}
		stages[i].queries = kept
	}
	return stages
}

// Search runs the relaxation plan and returns the first non-empty candidate
// set. Failed searches count as empty, except for context cancellation.
func (r *Resolver) Search(ctx context.Context, info track.Info) ([]Candidate, error) {
	for _, st := range plan(info) {
		if len(st.queries) == 0 {
			continue
		}

		var union []Candidate
		ids := make(map[string]bool)
		for _, q := range st.queries {
			found, err := r.catalog.Search(ctx, q)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				if errors.Is(err, context.Canceled) {
					return nil, err
				}
				r.logger.Warn("Lyrics search failed", "stage", st.name, "query", q.String(), "error", err)
				continue
			}
			for _, c := range found {
				if c.ID != "" && ids[c.ID] {
					continue
				}
				ids[c.ID] = true
				union = append(union, c)
			}
		}

		r.logger.Debug("Lyrics search", "stage", st.name, "results", len(union))
		if len(union) > 0 {
			return union, nil
		}
	}

	return nil, &NotFoundError{Title: info.Title, Artist: info.Artist}
}
