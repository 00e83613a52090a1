// ABOUTME: The tickets subcommand prints the ledger history of one ticket
// ABOUTME: Lets support staff read reports and hand-off requests without a database client

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/envision-bot/internal/config"
	"github.com/2389/envision-bot/internal/script"
	"github.com/2389/envision-bot/internal/store"
)

// ticketHistoryLimit caps how many events the tickets command prints.
const ticketHistoryLimit = 200

func runTickets(ctx context.Context, configPath, ticket string) error {
	if !script.IsTicketNumber(ticket) {
		return fmt.Errorf("invalid ticket number %q: expected 5 digits", ticket)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}
	if cfg.Database.Path == "" {
		return errors.New("no ledger configured: set database.path")
	}

	ledger, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer ledger.Close()

	events, err := ledger.ListByTicket(ctx, ticket, ticketHistoryLimit)
	if err != nil {
		return fmt.Errorf("listing ticket events: %w", err)
	}

	return printTicketEvents(os.Stdout, ticket, events)
}

func printTicketEvents(w io.Writer, ticket string, events []*store.Event) error {
	if len(events) == 0 {
		_, err := fmt.Fprintf(w, "No events for ticket %s\n", ticket)
		return err
	}

	bold := color.New(color.Bold)
	if _, err := bold.Fprintf(w, "Ticket %s\n\n", ticket); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEVENT\tUSER\tNAME\tTEXT")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime),
			e.Kind,
			e.UserID,
			e.DisplayName,
			strings.Join(strings.Fields(e.Text), " "),
		)
	}
	return tw.Flush()
}
