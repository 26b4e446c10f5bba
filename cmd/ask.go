package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/masskarem1/PHYS.101-Ebook/internal/aiproxy"
	"github.com/masskarem1/PHYS.101-Ebook/internal/pages"
)

var askCmd = &cobra.Command{
	Use:   "ask [explain|quiz|relate|analyze_page|translate_page]",
	Short: "Ask the AI helper about a page",
	Long: `Sends one AI helper request for a page through the configured proxy
(ai.proxy_url), with the same retry policy as the viewer, and prints the
reply. --translate also translates the reply.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().Int("page", 1, "page number")
	askCmd.Flags().Bool("translate", false, "translate the reply into ai.translate_language")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	page, _ := cmd.Flags().GetInt("page")
	translate, _ := cmd.Flags().GetBool("translate")

	action, err := aiproxy.ParseAction(args[0])
	if err != nil {
		return err
	}
	if action == aiproxy.ActionTranslateText {
		return fmt.Errorf("%s is only available as --translate", action)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !pages.NewAssets(cfg.Book).Valid(page) {
		return fmt.Errorf("page %d outside 1..%d", page, cfg.Book.TotalPages)
	}
	log := newLogger(cfg)

	text, err := loadCorpus(cfg, log)
	if err != nil {
		return err
	}

	var recorder aiproxy.Recorder
	if database, err := openDB(cfg); err == nil {
		defer database.Close()
		recorder = aiproxy.NewSQLRecorder(database)
	} else {
		log.Warn().Err(err).Msg("AI requests will not be recorded")
	}

	helper := newHelper(cfg, text, newLoader(cfg, log), recorder, log)
	reply, err := helper.Ask(ctx, action, page)
	if err != nil {
		return fmt.Errorf("%s page %d (after %d attempts): %w", action, page, reply.Attempts, err)
	}
	fmt.Println(reply.Text)

	if translate {
		tr, err := helper.Translate(ctx, reply.Text)
		if err != nil {
			return fmt.Errorf("translating reply: %w", err)
		}
		fmt.Println()
		fmt.Println(tr.Text)
	}
	return nil
}
