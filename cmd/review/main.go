// Command review is an interactive terminal UI for working through pending
// match suggestions: approve, reject, or skip each one with a single
// keystroke, mirroring the web review queue.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/previa-finance/previa-backend/internal/application/reconcile"
	"github.com/previa-finance/previa-backend/internal/domain/review"
	"github.com/previa-finance/previa-backend/internal/infrastructure/config"
	"github.com/previa-finance/previa-backend/internal/infrastructure/logging"
	"github.com/previa-finance/previa-backend/internal/infrastructure/storage"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file path")
		userID     = flag.String("user", "", "User ID to review suggestions for")
	)
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: review -user <user-id> [-config <path>]")
		os.Exit(1)
	}

	var cfg *config.Config
	if *configFile != "" {
		cfg = config.LoadOrEnvWithPath(*configFile)
	} else {
		cfg = config.LoadOrEnv()
	}

	logger := logging.NewScopedLogger(cfg.Logging, "review")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	service := reconcile.NewService(store, nil, reconcile.Config{
		LookbackDays:   cfg.Matching.LookbackDays,
		CandidateLimit: cfg.Matching.CandidateLimit,
	}, logger)

	pending, err := service.ListSuggestions(*userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load suggestions: %v\n", err)
		os.Exit(1)
	}

	session := review.NewSession(pending, cfg.Matching.WrapCursor)
	if session.Len() == 0 {
		fmt.Println("No pending suggestions.")
		return
	}

	printStats(review.ComputeStats(session.Suggestions()))
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	for {
		current := session.Current()
		if current == nil {
			fmt.Println("\nAll suggestions reviewed.")
			break
		}

		printSuggestion(current, session.Len())
		fmt.Print("[a]pprove  [r]eject  [n]ext  [u]ndo  [q]uit > ")

		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key := []rune(line)[0]
		if key == 'q' || key == 'Q' {
			break
		}
		if key == 'u' || key == 'U' {
			if err := session.Undo(""); err != nil {
				color.Yellow("  %v", err)
			}
			continue
		}

		action, ok := review.ActionForKey(key)
		if !ok {
			continue
		}

		switch action {
		case review.ActionApprove:
			if err := service.Approve(*userID, current.ID); err != nil {
				color.Red("  approve failed: %v", err)
				continue
			}
			session.RecordApproval(current.ID)
			session.Resolve(current.ID)
			color.Green("  approved")
		case review.ActionReject:
			if err := service.Reject(*userID, current.ID); err != nil {
				color.Red("  reject failed: %v", err)
				continue
			}
			session.Resolve(current.ID)
			color.Yellow("  rejected")
		case review.ActionSkip:
			session.Skip()
		}
	}

	printRecent(session.RecentApprovals())
}

func printSuggestion(sg *storage.PendingSuggestion, remaining int) {
	fmt.Println()
	color.New(color.BgBlue, color.FgWhite).Printf(" %d pending ", remaining)
	color.New(color.BgWhite, color.FgBlack).Printf(" %.0f%% ", sg.Confidence*100)
	fmt.Println()

	if sg.Receipt != nil {
		fmt.Printf("  receipt:     %-30s %s  %s\n",
			sg.Receipt.Merchant,
			sg.Receipt.ReceiptDate.Format("2006-01-02"),
			formatCents(sg.Receipt.TotalCents))
	}
	if sg.Transaction != nil {
		fmt.Printf("  transaction: %-30s %s  %s\n",
			sg.Transaction.Description,
			sg.Transaction.Date.Format("2006-01-02"),
			formatCents(sg.Transaction.AmountCents))
	}
	color.Cyan("  %s", sg.MatchReason)
}

func printStats(stats review.Stats) {
	fmt.Printf("%d pending suggestions  (high: %d, medium: %d, low: %d, mean confidence: %d%%)\n",
		stats.Total, stats.High, stats.Medium, stats.Low, stats.MeanConfidencePct)
}

func printRecent(recent []review.ApprovalRecord) {
	if len(recent) == 0 {
		return
	}
	fmt.Println("\nRecently approved:")
	for _, r := range recent {
		fmt.Printf("  %s  %s\n", r.Timestamp.Format("15:04:05"), r.SuggestionID)
	}
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
