package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/sandevgo/gavbot/internal/config"
	"github.com/sandevgo/gavbot/pkg/log"
)

var (
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "gav",
	Short: "G.A.V. — conversational sales assistant",
	Long:  `G.A.V. is a WhatsApp-style shopping assistant for wholesale customers.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	isDebug := debug || config.IsDebug()
	return log.NewContextWithLogger(ctx, isDebug)
}
