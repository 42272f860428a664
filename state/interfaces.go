// state/interfaces.go
package state

import (
	"context"

	"github.com/wfunc/spyserver/models"
)

// WordPairSource is the read side of the word-pair store the engine needs at game start.
type WordPairSource interface {
	FindMany(ctx context.Context, opts models.FindOptions) ([]models.WordPair, error)
}
