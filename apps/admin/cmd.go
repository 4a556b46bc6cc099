package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/trezcool/proctor/core"
	"github.com/trezcool/proctor/core/proctor"
	sqlxrepos "github.com/trezcool/proctor/storage/database/sqlx"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp    = errors.New("help provided")
	errAborted = errors.New("aborted")
)

// archiveStore is the read & prune side of the room archive.
type archiveStore interface {
	ListRooms(ctx context.Context) ([]sqlxrepos.ArchivedRoom, error)
	ListIncidents(ctx context.Context, roomID string, limit int) ([]proctor.ViolationEvent, error)
	PruneRooms(ctx context.Context, before time.Time) (int64, error)
}

type commandLine struct {
	conf    *core.Config
	db      *sql.DB
	archive archiveStore
	in      io.Reader
	out     io.Writer
	nowFunc func() time.Time
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, version...) on the archive")
	fmt.Fprintln(cli.out, "  rooms - list the archived rooms")
	fmt.Fprintln(cli.out, "  incidents -room ROOM [-limit N] - list the archived incidents of a room, newest first")
	fmt.Fprintln(cli.out, "  prune -days N [-yes] - delete the rooms archived more than N days ago")
	fmt.Fprintln(cli.out, "  token -instructor ID [-name NAME] [-email EMAIL] - issue an instructor API token")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	incidentsCmd := flag.NewFlagSet("incidents", flag.ExitOnError)
	incidentsRoom := incidentsCmd.String("room", "", "The room ID.")
	incidentsLimit := incidentsCmd.Int("limit", 0, "The maximum number of incidents to list; 0 lists them all.")

	pruneCmd := flag.NewFlagSet("prune", flag.ExitOnError)
	pruneDays := pruneCmd.Int("days", 0, "Rooms archived more than this number of days ago are deleted.")
	pruneYes := pruneCmd.Bool("yes", false, "Do not ask for confirmation.")

	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
	tokenInstructor := tokenCmd.String("instructor", "", "The instructor ID; rooms they open are theirs.")
	tokenName := tokenCmd.String("name", "", "The instructor's name.")
	tokenEmail := tokenCmd.String("email", "", "The instructor's email; blocked students are reported to it.")

	ctx := context.Background()

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "rooms":
		return cli.listRooms(ctx)
	case "incidents":
		if err := incidentsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *incidentsRoom == "" {
			incidentsCmd.Usage()
			return errHelp
		}
		return cli.listIncidents(ctx, *incidentsRoom, *incidentsLimit)
	case "prune":
		if err := pruneCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *pruneDays <= 0 {
			pruneCmd.Usage()
			return errHelp
		}
		before := cli.nowFunc().UTC().AddDate(0, 0, -*pruneDays)
		if !*pruneYes {
			if err := cli.confirm(fmt.Sprintf("Delete the rooms archived before %s?", before.Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return cli.prune(ctx, before)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if core.CleanString(*tokenInstructor) == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenInstructor, *tokenName, *tokenEmail)
	default:
		cli.printUsage()
		return errHelp
	}
}

// confirm asks a yes/no question. Without a terminal there is nobody to ask: use -yes.
func (cli *commandLine) confirm(question string) error {
	if !isTerminalFunc(int(os.Stdin.Fd())) {
		return errors.New("not a terminal: pass -yes to confirm")
	}
	fmt.Fprintf(cli.out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(cli.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	default:
		return errAborted
	}
}
