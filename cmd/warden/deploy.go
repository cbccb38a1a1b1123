package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/warden"
	"github.com/xraph/warden/commands"
	"github.com/xraph/warden/deploy"
	"github.com/xraph/warden/discord"
)

func newDeployCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Register the slash commands in the configured guild and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := opts.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			cfg, err := warden.LoadConfig()
			if err != nil {
				return err
			}

			sess, err := discord.New(cfg.Token, cfg.ClientID, cfg.GuildID, discord.WithLogger(logger))
			if err != nil {
				return err
			}

			defs := commands.All(commands.Deps{Platform: sess, Repo: cfg.GitHubRepo, Logger: logger})
			syncer := deploy.New(sess,
				deploy.WithTimeout(cfg.DeployTimeout),
				deploy.WithLogger(logger),
			)

			fmt.Fprintf(cmd.OutOrStdout(), "Started refreshing %d application (/) commands.\n", len(defs))
			res, err := syncer.Sync(cmd.Context(), defs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully reloaded %d application (/) commands in %s.\n",
				res.Commands, res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
}
