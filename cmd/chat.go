package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/classmark/classmark/internal/config"
)

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask the campus FAQ chatbot",
	Long: `Ask the campus FAQ chatbot a question. With an argument the answer is
printed and the command exits; without one an interactive prompt starts.
Questions the FAQ corpus cannot answer are forwarded to the configured
AI provider, if any.`,
	Args: cobra.ArbitraryArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	lg, err := setupLogger(cfg)
	if err != nil {
		return fmt.Errorf("could not set up logger: %w", err)
	}
	defer func() { _ = lg.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	bot, err := buildBot(ctx, cfg, lg)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		fmt.Println(bot.Respond(ctx, strings.Join(args, " ")))
		return nil
	}

	fmt.Printf("Loaded %d FAQ entries. Type a question, or \"quit\" to leave.\n", bot.Len())
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		fmt.Println(bot.Respond(ctx, line))
	}

	return scanner.Err()
}
