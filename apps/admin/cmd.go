package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core/attendance"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db      *sqlx.DB
	journal attendance.Journal
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, version, ...)")
	_, _ = fmt.Fprintln(cli.out, "  history -class CLASS_ID -date YYYY-MM-DD - list the saves of an attendance session")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	historyCmd := flag.NewFlagSet("history", flag.ContinueOnError)
	historyCmd.SetOutput(cli.out)
	historyClass := historyCmd.String("class", "", "The class ID.")
	historyDate := historyCmd.String("date", "", "The session date, YYYY-MM-DD.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "history":
		if err := historyCmd.Parse(args[2:]); err != nil {
			return err
		}
		key := attendance.NewSessionKey(*historyClass, *historyDate)
		if !key.Complete() {
			historyCmd.Usage()
			return errHelp
		}
		return cli.history(context.Background(), key)
	default:
		cli.printUsage()
		return errHelp
	}
}
