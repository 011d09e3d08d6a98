package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/abhisek/vitalq/internal/app"
	"github.com/abhisek/vitalq/internal/assessment"
	"github.com/abhisek/vitalq/internal/screen"
	"github.com/abhisek/vitalq/internal/screens/interview"
	"github.com/abhisek/vitalq/internal/screens/welcome"
)

var takeCmd = &cobra.Command{
	Use:   "take",
	Short: "Take an assessment in the terminal",
	Long: "Starts, or resumes, the client's open assessment in a full-screen interview.\n" +
		"Ctrl+B goes back one question, Ctrl+P pauses.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, _ := cmd.Flags().GetString("client")

		// The interview owns the terminal; logs would corrupt the frame.
		d, err := openDeps(ctx, cfg, depsOptions{logTo: io.Discard})
		if err != nil {
			return err
		}
		defer d.Close()

		res, err := d.engine.Start(ctx, client)
		if err != nil {
			return err
		}
		if res.State.Status == assessment.StatusPaused {
			if _, err := d.engine.Resume(ctx, res.State.ID); err != nil {
				return err
			}
		}

		intro := welcome.Intro{
			ClientRef: res.State.ClientRef,
			Answered:  res.State.QuestionsAsked,
			Resumed:   res.Resuming,
		}
		for _, m := range d.catalog.Modules() {
			intro.Modules = append(intro.Modules, m.Name)
		}
		first := welcome.New(intro, func() screen.Screen {
			return interview.New(ctx, d.engine, d.catalog, res.State.ID)
		})
		if err := app.Run(ctx, first); err != nil {
			return err
		}

		rep, err := d.engine.Status(ctx, res.State.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Assessment %s: %s, %d%% complete\n",
			rep.State.ID, rep.State.Status, rep.State.CompletionRate)
		return nil
	},
}

func init() {
	takeCmd.Flags().StringP("client", "c", "", "Client reference the assessment belongs to")
	_ = takeCmd.MarkFlagRequired("client")
}
