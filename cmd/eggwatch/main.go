package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/hatchline/eggwatch/internal/config"
	"github.com/hatchline/eggwatch/internal/gateway"
	"github.com/hatchline/eggwatch/internal/store"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "eggwatch",
	Short: "eggwatch - chat egg counting bot",
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the bot (channels + live counting + daily rollover)",
	RunE:  runGateway,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and the default pattern seed",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show eggwatch status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(gatewayCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	g, err := gateway.New(cfg)
	if err != nil {
		return err
	}
	return g.Run(context.Background())
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := config.SaveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", config.ConfigPath())

	if _, err := os.Stat(cfg.Tracker.SeedPath); os.IsNotExist(err) {
		if err := config.WriteSeed(cfg.Tracker.SeedPath, config.DefaultSeed()); err != nil {
			return err
		}
		fmt.Printf("Wrote %s with the default pattern set\n", cfg.Tracker.SeedPath)
	} else {
		fmt.Printf("Seed file %s already exists, leaving it alone\n", cfg.Tracker.SeedPath)
	}

	fmt.Println("Set EGGWATCH_TELEGRAM_TOKEN (or edit the config) and run 'eggwatch gateway'.")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Printf("config: %s\n", config.ConfigPath())
	fmt.Printf("db: %s\n", cfg.Tracker.DBPath)
	fmt.Printf("tz offset: %+gh, retention: %d days\n", cfg.Tracker.TZOffsetHours, cfg.Tracker.RetentionDays)
	fmt.Printf("telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Printf("webui: enabled=%v port=%d\n", cfg.Channels.WebUI.Enabled, cfg.Channels.WebUI.Port)

	if _, err := os.Stat(cfg.Tracker.DBPath); os.IsNotExist(err) {
		fmt.Println("store: not created yet")
		return nil
	}

	st, err := store.New(cfg.Tracker.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	types, err := st.ListTypes()
	if err != nil {
		return err
	}
	fmt.Printf("egg types: %d\n", len(types))

	counts, err := st.LoadLiveCounts()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(counts))
	total := 0
	for name, count := range counts {
		names = append(names, name)
		total += count
	}
	sort.Strings(names)
	fmt.Printf("today: %d total", total)
	for _, name := range names {
		if counts[name] > 0 {
			fmt.Printf(" %s=%d", name, counts[name])
		}
	}
	fmt.Println()

	oldest, newest, n, err := st.RollupSpan()
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("rollups: none")
	} else {
		fmt.Printf("rollups: %d rows, %s .. %s\n", n, oldest, newest)
	}
	return nil
}
