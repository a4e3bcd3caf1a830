package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askUser string

var askCmd = &cobra.Command{
	Use:   "ask <command>",
	Short: "Run one command through the assistant and print the result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(askUser) == "" {
			return errors.New("--user is required")
		}
		ctx, cfg, flushLog, err := loadConfig(cmd.Context())
		defer flushLog()
		if err != nil {
			return err
		}

		st, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		dispatcher, err := newDispatcher(ctx, cfg, st)
		if err != nil {
			return err
		}
		out, err := dispatcher.Run(ctx, strings.Join(args, " "), askUser)
		if err != nil {
			return err
		}
		buf, err := json.MarshalIndent(map[string]any{"result": out.Payload()}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(buf))
		return nil
	},
}

func init() {
	askCmd.Flags().StringVarP(&askUser, "user", "u", "", "user id the command runs as")
	rootCmd.AddCommand(askCmd)
}
