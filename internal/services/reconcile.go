// Package services – Reconciliation
//
// Reconcile merges the upstream film list with the locally stored movies into
// the single list served by GET /movies:
//
//  1. For each upstream film, in upstream order, emit the local movie that
//     represents it, or a synthetic movie built from the film when none does.
//     A local movie represents a film when its external id equals the film's
//     episode id, or failing that, when its title equals the film's title.
//  2. Append every local movie that was not emitted in step 1 and whose
//     title does not appear among the emitted titles, in store order.
//
// Title comparison is exact after Unicode NFC normalization. Soft-deleted
// local movies participate like any other. A local movie is emitted at most
// once; a second film resolving to it is emitted as a synthetic movie.
package services

import (
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/go-movie-backend/internal/catalog"
	"github.com/tbourn/go-movie-backend/internal/domain"
)

// Reconcile returns the unified movie list. It never fails; both inputs may
// be empty.
func Reconcile(films []catalog.Film, locals []domain.Movie) []domain.Movie {
	byExternal := make(map[string]int, len(locals))
	byTitle := make(map[string]int, len(locals))
	for i := len(locals) - 1; i >= 0; i-- {
		// Iterating backwards keeps the first stored match for duplicates.
		if ext := locals[i].ExternalID; ext != nil && *ext != "" {
			byExternal[*ext] = i
		}
		byTitle[titleKey(locals[i].Title)] = i
	}

	out := make([]domain.Movie, 0, len(films)+len(locals))
	used := make(map[int]struct{}, len(films))
	emittedTitles := make(map[string]struct{}, len(films))

	for _, f := range films {
		idx, ok := byExternal[f.ID()]
		if !ok {
			idx, ok = byTitle[titleKey(f.Title)]
		}
		if _, dup := used[idx]; ok && dup {
			ok = false
		}
		if ok {
			out = append(out, locals[idx])
			used[idx] = struct{}{}
			emittedTitles[titleKey(locals[idx].Title)] = struct{}{}
		} else {
			out = append(out, f.Movie())
		}
		emittedTitles[titleKey(f.Title)] = struct{}{}
	}

	for i, m := range locals {
		if _, ok := used[i]; ok {
			continue
		}
		if _, ok := emittedTitles[titleKey(m.Title)]; ok {
			continue
		}
		out = append(out, m)
	}
	return out
}

func titleKey(s string) string { return norm.NFC.String(s) }
