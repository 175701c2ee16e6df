// Package reconcile keeps local and remote reading progress converging.
//
// Both copies are edited independently, offline or not. A read compares
// them, picks the more recently updated one and repairs whichever side is
// behind. Equal timestamps keep the local copy.
//
// # Usage
//
//	svc := reconcile.NewService(progressRepo, booksRepo, connector)
//	p, err := svc.Read(ctx, bookID)
//	p, err = svc.Write(ctx, bookID, 42, entities.Bool(false))
package reconcile

import (
	"github.com/mrlokans/readerclient/internal/entities"
)

// Decision is the outcome of comparing two copies of one book's progress.
type Decision struct {
	Winner      *entities.Progress
	WriteLocal  bool
	WriteRemote bool
}

// Resolve picks the winning record. Either side may be nil. When neither
// exists the winner is a zero position that nobody needs to store.
func Resolve(local, remote *entities.Progress) Decision {
	switch {
	case local == nil && remote == nil:
		return Decision{Winner: &entities.Progress{Completed: entities.Bool(false)}}
	case remote == nil:
		return Decision{Winner: clone(local), WriteRemote: true}
	case local == nil:
		return Decision{Winner: clone(remote), WriteLocal: true}
	}

	winner, loser := local, remote
	if remote.Updated > local.Updated {
		winner, loser = remote, local
	}

	merged := clone(winner)
	if merged.Completed == nil && loser.Completed != nil {
		merged.Completed = entities.Bool(*loser.Completed)
	}

	return Decision{
		Winner:      merged,
		WriteLocal:  !merged.Same(local),
		WriteRemote: !merged.Same(remote),
	}
}

func clone(p *entities.Progress) *entities.Progress {
	c := &entities.Progress{
		BookID:   p.BookID,
		Updated:  p.Updated,
		Position: p.Position,
	}
	if p.Completed != nil {
		c.Completed = entities.Bool(*p.Completed)
	}
	return c
}
