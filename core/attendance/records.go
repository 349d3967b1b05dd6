package attendance

import (
	"context"

	"github.com/pkg/errors"
)

// RecordSource fetches previously saved statuses. It returns ErrNotFound when the session has none yet.
type RecordSource interface {
	FetchRecords(ctx context.Context, key SessionKey) (Record, error)
}

type RecordLoader struct {
	source RecordSource
}

func NewRecordLoader(source RecordSource) *RecordLoader {
	return &RecordLoader{source: source}
}

// Load treats a not-found answer as an empty Record. Other failures are informational for the caller.
func (l *RecordLoader) Load(ctx context.Context, key SessionKey) (Record, error) {
	if !key.Complete() {
		return nil, errSelectClassAndDate
	}
	rec, err := l.source.FetchRecords(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Record{}, nil
		}
		return nil, errors.Wrap(err, "loading attendance records")
	}
	if rec == nil {
		rec = Record{}
	}
	return rec, nil
}
