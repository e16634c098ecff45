package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cluegrid/cluegrid/internal/grading"
)

var (
	gradeClueID   int64
	gradeResponse string
)

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Grade a single response against a stored clue",
	Long:  "Runs the full grading decision tree for one response and prints the audit event as JSON. Useful for tuning thresholds against real clues.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		clue, err := st.GetClue(cmd.Context(), gradeClueID)
		if err != nil {
			return err
		}
		if clue == nil {
			return eris.Errorf("clue not found: %d", gradeClueID)
		}

		ev, err := newGrader(st).Grade(cmd.Context(), grading.GradeRequest{
			Clue:        clue,
			RawResponse: gradeResponse,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ev)
	},
}

func init() {
	gradeCmd.Flags().Int64Var(&gradeClueID, "clue-id", 0, "clue id to grade against")
	gradeCmd.Flags().StringVar(&gradeResponse, "response", "", "player response text")
	gradeCmd.MarkFlagRequired("clue-id")
	gradeCmd.MarkFlagRequired("response")
	rootCmd.AddCommand(gradeCmd)
}
