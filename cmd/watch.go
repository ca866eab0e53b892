package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/ilnaes/ownpad/internal/client"
	co "github.com/ilnaes/ownpad/internal/common"
	"github.com/spf13/cobra"
)

var allowUnowned bool

var watchCmd = &cobra.Command{
	Use:   "watch <url> <room>",
	Short: "Join a room and print every change",
	Long:  `Join a room as a read-only participant and print the document, with the owner of every range, each time it changes.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&allowUnowned, "allow-unowned", false, "Treat text with no recorded owner as deletable")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	c, err := client.Dial(dialCtx, args[0], args[1], co.Policy{AllowUnowned: allowUnowned})
	cancel()
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "joined %s as %s (owner: %v)\n", args[1], c.Actor(), c.IsOwner())
	printDocument(out, c.Document())

	for {
		select {
		case u, ok := <-c.Updates():
			if !ok {
				return fmt.Errorf("connection closed")
			}
			if u.Err != nil {
				fmt.Fprintf(out, "error: %s\n", u.Err)
			}
			printDocument(out, u.Document)
		case <-ctx.Done():
			return nil
		}
	}
}

func printDocument(w io.Writer, doc co.Document) {
	fmt.Fprintf(w, "--- %d chars, %d ranges\n", co.Length(doc.Content), len(doc.Ranges))
	runes := []rune(doc.Content)
	for _, r := range doc.Ranges {
		if r.End > len(runes) {
			continue
		}
		fmt.Fprintf(w, "[%d,%d) %s: %q\n", r.Start, r.End, r.Owner, string(runes[r.Start:r.End]))
	}
}
