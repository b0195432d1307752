package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TheMichaelB/sealfile/internal/strength"
)

var scoreCmd = &cobra.Command{
	Use:   "score [password]",
	Short: "Rate a password",
	Long: `Score rates a password from 0 to 100 using its length and the
character classes it contains. Without an argument the password is
prompted for without echo.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		var err error
		password, err = promptPassword("Password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	score, rating := strength.NewScorer(cfg.Password.MaxLength).Rate(password)

	if jsonOutput {
		printJSON(map[string]interface{}{
			"score":      score,
			"rating":     rating,
			"max_length": cfg.Password.MaxLength,
		})
		return nil
	}

	printRating(score, rating)
	return nil
}

func printRating(score float64, rating strength.Rating) {
	c := color.New(color.FgGreen)
	switch rating {
	case strength.RatingWeak:
		c = color.New(color.FgRed)
	case strength.RatingFair:
		c = color.New(color.FgYellow)
	}
	c.Fprintf(color.Error, "Password strength: %.0f/100 (%s)\n", score, rating)
}
