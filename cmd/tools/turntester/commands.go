package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/lowerlands/backend/internal/model/game"
)

func newTurnCmd(getApp func() *app, session func() string) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "turn",
		Short: "Play one turn and print the reply",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reply, err := getApp().engine.RunTurn(cmd.Context(), session(), message)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "player message")
	return cmd
}

func newHistoryCmd(getApp func() *app, session func() string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent turns, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			turns, err := getApp().engine.History(cmd.Context(), session(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range turns {
				fmt.Fprintf(out, "[%s] %s\n", t.Role, strings.ReplaceAll(t.Content, "\n", " / "))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of turns (default: configured window)")
	return cmd
}

func newProfileCmd(getApp func() *app, session func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Read or write the player profile",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := getApp().games.Profile(cmd.Context(), session())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if profile == nil {
				fmt.Fprintln(out, "no profile")
				return nil
			}
			fmt.Fprintf(out, "Name: %s\nClass: %s\nBackground: %s\nGoal: %s\nAlignment: %s\n",
				profile.Name, profile.Class, profile.Background, profile.Goal, profile.Alignment)
			return nil
		},
	})

	var profile game.PlayerProfile
	set := &cobra.Command{
		Use:   "set",
		Short: "Save the profile, creating the world state on first save",
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile.SessionID = session()
			if err := getApp().games.SaveProfile(cmd.Context(), profile); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "profile saved")
			return nil
		},
	}
	set.Flags().StringVar(&profile.Name, "name", "", "character name")
	set.Flags().StringVar(&profile.Class, "class", "", "character class")
	set.Flags().StringVar(&profile.Background, "background", "", "background")
	set.Flags().StringVar(&profile.Goal, "goal", "", "goal")
	set.Flags().StringVar(&profile.Alignment, "alignment", "", "alignment")
	cmd.AddCommand(set)

	return cmd
}
