package attendance

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core"
)

// RosterSource is one way of obtaining a class roster.
// FetchRoster returns ErrNotApplicable when the source answered with an unusable shape.
type RosterSource interface {
	Name() string
	FetchRoster(ctx context.Context, classID string) (Roster, error)
}

// RosterLoader tries its sources in order and stops at the first one yielding entries.
type RosterLoader struct {
	sources []RosterSource
	logger  core.Logger
}

func NewRosterLoader(logger core.Logger, sources ...RosterSource) *RosterLoader {
	return &RosterLoader{sources: sources, logger: logger}
}

// Load returns the class roster.
// An empty roster with a nil error means a source answered but the class has no students yet.
// ErrRosterUnavailable is returned only when every source failed.
func (l *RosterLoader) Load(ctx context.Context, classID string) (Roster, error) {
	classID = core.CleanString(classID)
	if classID == "" {
		return nil, core.NewValidationError(errSelectClassAndDate)
	}

	var (
		answered bool
		lastErr  error
	)
	for _, src := range l.sources {
		roster, err := src.FetchRoster(ctx, classID)
		if err != nil {
			if errors.Is(err, ErrNotApplicable) {
				l.logger.Warn("roster source returned an unexpected shape", map[string]interface{}{
					"source": src.Name(), "class_id": classID,
				})
			} else {
				l.logger.Debug("roster source failed", err, map[string]interface{}{
					"source": src.Name(), "class_id": classID,
				})
			}
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		answered = true
		if roster = roster.normalized(); len(roster) > 0 {
			return roster, nil
		}
	}

	if answered || len(l.sources) == 0 {
		return Roster{}, nil
	}
	return nil, errors.Wrapf(ErrRosterUnavailable, "%v", lastErr)
}
