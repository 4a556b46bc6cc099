package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"
)

func (cli *commandLine) listRooms(ctx context.Context) error {
	rooms, err := cli.archive.ListRooms(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROOM\tSUBJECT\tINSTRUCTOR\tARCHIVED")
	for _, r := range rooms {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Subject, r.InstructorID, r.ArchivedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func (cli *commandLine) listIncidents(ctx context.Context, roomID string, limit int) error {
	incidents, err := cli.archive.ListIncidents(ctx, roomID, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSTUDENT\tCATEGORY\tWEIGHT\tEVIDENCE")
	for _, ev := range incidents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n",
			ev.Timestamp.Format(time.RFC3339), ev.StudentID, ev.Category.Label(), ev.Weight, ev.EvidenceRef)
	}
	return w.Flush()
}

func (cli *commandLine) prune(ctx context.Context, before time.Time) error {
	n, err := cli.archive.PruneRooms(ctx, before)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d room(s) deleted\n", n)
	return nil
}
