package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

var (
	nowFunc = time.Now // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	session     *attendance.Session
	in          *bufio.Scanner
	out         io.Writer
	interactive bool // prompts are declined when false
}

func newCommandLine(session *attendance.Session, in io.Reader, out io.Writer, interactive bool) *commandLine {
	return &commandLine{
		session:     session,
		in:          bufio.NewScanner(in),
		out:         out,
		interactive: interactive,
	}
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

func (cli *commandLine) printUsage() {
	cli.printf("Commands:\n")
	cli.printf("  list [SEARCH]               - list students, optionally filtered by name or number\n")
	cli.printf("  set STUDENT STATUS          - mark a student (ID or number) present, absent or late\n")
	cli.printf("  all STATUS                  - mark every student\n")
	cli.printf("  autofill                    - mark unmarked students present\n")
	cli.printf("  stats                       - show the session counters\n")
	cli.printf("  diff                        - show unsaved changes\n")
	cli.printf("  open CLASS_ID [YYYY-MM-DD]  - switch to another session\n")
	cli.printf("  refresh                     - reload roster and saved attendance\n")
	cli.printf("  save                        - save attendance\n")
	cli.printf("  history                     - list previous saves\n")
	cli.printf("  quit                        - leave\n")
}

// Confirm asks a y/N question on the terminal. Anything but yes declines.
func (cli *commandLine) Confirm(_ context.Context, prompt string) bool {
	cli.printf("%s [y/N] ", prompt)
	if !cli.interactive {
		cli.printf("n (not a terminal)\n")
		return false
	}
	if !cli.in.Scan() {
		cli.printf("\n")
		return false
	}
	switch core.CleanString(cli.in.Text(), true /* lower */) {
	case "y", "yes":
		return true
	}
	return false
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	markerCmd := flag.NewFlagSet("marker", flag.ContinueOnError)
	markerCmd.SetOutput(cli.out)
	class := markerCmd.String("class", "", "The class ID.")
	date := markerCmd.String("date", nowFunc().Format(core.DateLayout), "The session date, YYYY-MM-DD.")

	if err := markerCmd.Parse(args[1:]); err != nil {
		return err
	}
	if core.CleanString(*class) == "" {
		markerCmd.Usage()
		return errHelp
	}

	if err := cli.open(ctx, *class, *date); err != nil {
		return err
	}

	cli.printf("> ")
	for cli.in.Scan() {
		fields := strings.Fields(cli.in.Text())
		if len(fields) > 0 {
			if fields[0] == "quit" || fields[0] == "exit" {
				if err := cli.session.Close(ctx, cli); err == nil {
					return nil
				}
				cli.printf("still here: save or confirm to drop your changes\n")
			} else if err := cli.exec(ctx, fields[0], fields[1:]); err != nil {
				cli.printf("error: %s\n", describe(err))
			}
		}
		cli.printf("> ")
	}
	if err := cli.in.Err(); err != nil {
		return errors.Wrap(err, "reading commands")
	}

	// end of input is an unload
	cli.printf("\n")
	return cli.session.Close(ctx, cli)
}

func (cli *commandLine) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		cli.printUsage()
	case "list", "ls":
		cli.list(strings.Join(args, " "))
	case "set":
		if len(args) != 2 {
			return core.NewValidationError(errors.New("usage: set STUDENT STATUS"))
		}
		return cli.set(args[0], args[1])
	case "all":
		if len(args) != 1 {
			return core.NewValidationError(errors.New("usage: all STATUS"))
		}
		status, err := attendance.ParseStatus(args[0])
		if err != nil {
			return core.NewValidationError(err)
		}
		if err = cli.session.MarkAll(status); err != nil {
			return err
		}
		cli.stats()
	case "autofill":
		filled, err := cli.session.AutoFill()
		if err != nil {
			return err
		}
		cli.printf("%d student(s) marked present\n", filled)
	case "stats":
		cli.stats()
	case "diff":
		if diff := cli.session.Diff(); diff != "" {
			cli.printf("%s", diff)
		} else {
			cli.printf("no unsaved changes\n")
		}
	case "open":
		if len(args) < 1 || len(args) > 2 {
			return core.NewValidationError(errors.New("usage: open CLASS_ID [YYYY-MM-DD]"))
		}
		date := nowFunc().Format(core.DateLayout)
		if len(args) == 2 {
			date = args[1]
		}
		return cli.open(ctx, args[0], date)
	case "refresh":
		if err := cli.session.Refresh(ctx, cli); err != nil {
			return err
		}
		cli.notices()
		cli.stats()
	case "save":
		receipt, err := cli.session.Save(ctx, cli)
		if err != nil {
			return err
		}
		cli.printf("saved %d student(s): %d present, %d absent, %d late", receipt.Total, receipt.Present, receipt.Absent, receipt.Late)
		if receipt.Defaulted > 0 {
			cli.printf(" (%d defaulted to absent)", receipt.Defaulted)
		}
		cli.printf("\n")
		cli.notices()
	case "history":
		return cli.history(ctx)
	default:
		cli.printf("unknown command %q\n", cmd)
		cli.printUsage()
	}
	return nil
}

func (cli *commandLine) open(ctx context.Context, classID, date string) error {
	if err := cli.session.Select(ctx, attendance.NewSessionKey(classID, date), cli); err != nil {
		return err
	}
	cli.printf("%s\n", cli.session.Key())
	cli.notices()
	cli.stats()
	return nil
}

// set accepts a student ID or student number.
func (cli *commandLine) set(student, status string) error {
	st, err := attendance.ParseStatus(status)
	if err != nil {
		return core.NewValidationError(err)
	}
	id := student
	for _, row := range cli.session.View("").Rows {
		if row.StudentID == student {
			id = row.StudentID
			break
		}
		if row.StudentNumber != "" && row.StudentNumber == student {
			id = row.StudentID
		}
	}
	return cli.session.SetStatus(id, st)
}

func (cli *commandLine) list(search string) {
	view := cli.session.View(search)
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNUMBER\tNAME\tSTATUS")
	for _, row := range view.Rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.StudentID, row.StudentNumber, row.DisplayName, row.Status)
	}
	_ = w.Flush()
	if len(view.Rows) < view.Stats.Total {
		cli.printf("%d of %d student(s) shown\n", len(view.Rows), view.Stats.Total)
	}
}

func (cli *commandLine) stats() {
	s := cli.session.Stats()
	cli.printf("total %d, present %d, absent %d, late %d, unmarked %d", s.Total, s.Present, s.Absent, s.Late, s.Unmarked)
	if cli.session.Dirty() {
		cli.printf(" (unsaved changes)")
	}
	cli.printf("\n")
}

func (cli *commandLine) notices() {
	for _, n := range cli.session.View("").Notices {
		cli.printf("note: %s\n", n.Message)
	}
	if t := cli.session.LastSavedAt(); !t.IsZero() {
		cli.printf("last saved %s\n", t.Local().Format(time.RFC1123))
	}
}

func (cli *commandLine) history(ctx context.Context) error {
	receipts, err := cli.session.History(ctx)
	if err != nil {
		return err
	}
	if len(receipts) == 0 {
		cli.printf("never saved\n")
		return nil
	}
	for _, r := range receipts {
		cli.printf("%s  %d present, %d absent, %d late, %d defaulted\n",
			r.SavedAt.Format(time.RFC3339), r.Present, r.Absent, r.Late, r.Defaulted)
	}
	return nil
}

// describe renders the field errors of validation failures.
func describe(err error) string {
	var vErr *core.ValidationError
	if errors.As(err, &vErr) && len(vErr.Fields) > 0 {
		msgs := make([]string, 0, len(vErr.Fields))
		for _, f := range vErr.Fields {
			msgs = append(msgs, f.Error)
		}
		return strings.Join(msgs, "; ")
	}
	return err.Error()
}
