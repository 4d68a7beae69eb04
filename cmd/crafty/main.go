package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"crafty/internal/chat"
	"crafty/internal/gateway"
	"crafty/internal/onboarding"
	"crafty/internal/server"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "crafty",
		Short: "Research assistant backend for the CraftyPanda caption archive",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.crafty/config.json)")

	root.AddCommand(chatCmd(), searchCmd(), serveCmd(), setupCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive research session",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw := gateway.New(configPath)
			service, rt, err := gw.InitService(chat.WithStreamCallback(func(fragment string) {
				fmt.Print(fragment)
			}))
			if err != nil {
				return err
			}

			fmt.Printf("Crafty research chat (provider=%s model=%s)\n", rt.Config.Provider, rt.Config.Model)
			fmt.Println("Type /exit to quit, /clear to reset context.")

			scanner := bufio.NewScanner(os.Stdin)
			ctx := cmd.Context()
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					fmt.Println()
					return nil
				}
				input := strings.TrimSpace(scanner.Text())
				if input == "" {
					continue
				}
				switch input {
				case "/exit", "exit", "quit":
					return nil
				case "/clear":
					service.Clear()
					fmt.Println("context cleared")
					continue
				}

				turnCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
				_, err := service.Send(turnCtx, input)
				cancel()
				fmt.Println()
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
				}
			}
		},
	}
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the caption archive directly",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw := gateway.New(configPath)
			_, rt, err := gw.InitService()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			results := rt.Search.Run(ctx, strings.Join(args, " "), rt.Block.ID)
			out, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.NewServer(gateway.New(configPath), port).Start(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on")
	return cmd
}

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive configuration wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return onboarding.Run(configPath)
		},
	}
}
