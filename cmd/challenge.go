package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cluegrid/cluegrid/internal/model"
)

var challengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Manage daily challenges",
}

// challengeFile is the YAML layout accepted by `challenge load`.
type challengeFile struct {
	Clues      []model.Clue           `yaml:"clues"`
	Challenges []model.DailyChallenge `yaml:"challenges"`
}

var challengeLoadCmd = &cobra.Command{
	Use:   "load <file.yaml>",
	Short: "Load clues and challenge definitions from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		var file challengeFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return eris.Wrapf(err, "parse %s", args[0])
		}

		st, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if len(file.Clues) > 0 {
			n, err := st.InsertClues(cmd.Context(), file.Clues)
			if err != nil {
				return err
			}
			zap.L().Info("clues loaded", zap.Int64("count", n))
		}

		for i := range file.Challenges {
			ch := &file.Challenges[i]
			if err := st.UpsertChallenge(cmd.Context(), ch); err != nil {
				return err
			}
			zap.L().Info("challenge loaded", zap.String("date", ch.ChallengeDate))
		}
		return nil
	},
}

var challengeShowDate string

var challengeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a day's challenge as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		ch, err := st.GetChallenge(cmd.Context(), challengeShowDate)
		if err != nil {
			return err
		}
		if ch == nil {
			return eris.Errorf("no challenge for %s", challengeShowDate)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ch)
	},
}

func init() {
	challengeShowCmd.Flags().StringVar(&challengeShowDate, "date", "", "challenge date (YYYY-MM-DD)")
	challengeShowCmd.MarkFlagRequired("date")
	challengeCmd.AddCommand(challengeLoadCmd)
	challengeCmd.AddCommand(challengeShowCmd)
	rootCmd.AddCommand(challengeCmd)
}
