package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/rm-hull/http-service/cmd"
)

func main() {
	var port int
	var debug bool
	var schedule string
	var token string
	var reqArgs cmd.RequestArgs

	rootCmd := &cobra.Command{
		Use:           "httpsvc",
		Short:         "Session-aware JSON API client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	requestCmd := &cobra.Command{
		Use:     "request METHOD PATH",
		Aliases: []string{"req"},
		Short:   "Send a request and print the result",
		Example: "  httpsvc request GET /users/:id --param id=7 --query page=2 --auto-refresh",
		Args:    cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			reqArgs.Method, reqArgs.Path = args[0], args[1]
			return cmd.Request(reqArgs)
		},
	}
	requestCmd.Flags().StringArrayVarP(&reqArgs.Params, "param", "p", nil, "path parameter key=value (repeatable)")
	requestCmd.Flags().StringArrayVarP(&reqArgs.Query, "query", "q", nil, "query parameter key=value (repeatable)")
	requestCmd.Flags().StringArrayVarP(&reqArgs.Headers, "header", "H", nil, "request header key=value (repeatable)")
	requestCmd.Flags().StringVarP(&reqArgs.Data, "data", "d", "", "JSON request body (ignored for GET)")
	requestCmd.Flags().BoolVarP(&reqArgs.AutoRefresh, "auto-refresh", "r", false, "refresh the session and retry once on 401")

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Exchange a refresh token for a new session and store it",
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmd.Refresh(token)
		},
	}
	refreshCmd.Flags().StringVar(&token, "token", "", "refresh token to use instead of the stored one")

	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the stored session",
	}
	sessionCmd.AddCommand(
		&cobra.Command{
			Use:   "set-token TOKEN",
			Short: "Store a refresh token for the current profile",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return cmd.SetToken(args[0])
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show the stored session (without the refresh token)",
			RunE: func(_ *cobra.Command, _ []string) error {
				return cmd.ShowSession()
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete the stored session",
			RunE: func(_ *cobra.Command, _ []string) error {
				return cmd.ClearSession()
			},
		},
	)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmd.ApiServer(port, debug)
		},
	}
	serveCmd.Flags().IntVar(&port, "port", 0, "port to listen on (default $PORT or 8080)")
	serveCmd.Flags().BoolVar(&debug, "debug", false, "enable pprof endpoints")

	keepaliveCmd := &cobra.Command{
		Use:   "keepalive",
		Short: "Refresh the stored session on a CRON schedule",
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmd.KeepAlive(schedule)
		},
	}
	keepaliveCmd.Flags().StringVar(&schedule, "schedule", "", "CRON schedule (default $KEEPALIVE_SCHEDULE)")

	rootCmd.AddCommand(requestCmd, refreshCmd, sessionCmd, serveCmd, keepaliveCmd)

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, cmd.ErrResultFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
