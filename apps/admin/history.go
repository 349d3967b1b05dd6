package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/trezcool/masomo-attendance/core/attendance"
)

// history prints the journaled saves of key, newest first.
func (cli *commandLine) history(ctx context.Context, key attendance.SessionKey) error {
	receipts, err := cli.journal.History(ctx, key)
	if err != nil {
		return err
	}
	if len(receipts) == 0 {
		_, _ = fmt.Fprintf(cli.out, "%s: never saved\n", key)
		return nil
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SAVED AT\tBY\tTOTAL\tPRESENT\tABSENT\tLATE\tDEFAULTED")
	for _, r := range receipts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			r.SavedAt.Format(time.RFC3339), r.SavedBy, r.Total, r.Present, r.Absent, r.Late, r.Defaulted)
	}
	return w.Flush()
}
