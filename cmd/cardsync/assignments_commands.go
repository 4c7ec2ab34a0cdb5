package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"cardsync/internal/api"
	"cardsync/internal/scanqueue"
)

func newAssignmentsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "assignments",
		Aliases: []string{"assign"},
		Short:   "Inspect and edit stored tag assignments",
	}

	var listJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openAssignments(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()
			items, err := session.Access.List(cmd.Context())
			if err != nil {
				return err
			}
			if listJSON {
				return writeJSON(cmd, api.AssignmentListResponse{Items: items})
			}
			renderAssignments(cmd.OutOrStdout(), items)
			return nil
		},
	}
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print assignments as JSON")

	var showJSON bool
	showCmd := &cobra.Command{
		Use:   "show <tag>",
		Short: "Show the assignment for one tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tagID, err := scanqueue.NormalizeTagID(args[0])
			if err != nil {
				return err
			}
			session, err := ctx.openAssignments(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()
			item, found, err := session.Access.Describe(cmd.Context(), tagID)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no assignment stored for tag %s", tagID)
			}
			if showJSON {
				return writeJSON(cmd, item)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tag:       %s\n", item.TagID)
			fmt.Fprintf(out, "Kind:      %s\n", item.Kind)
			if item.Path != "" {
				fmt.Fprintf(out, "Path:      %s\n", item.Path)
			}
			fmt.Fprintf(out, "Mode:      %d\n", item.Mode)
			fmt.Fprintf(out, "Record:    %s\n", item.Value)
			fmt.Fprintf(out, "Updated:   %s\n", item.UpdatedAt)
			fmt.Fprintf(out, "Malformed: %s\n", yesNo(item.Malformed))
			return nil
		},
	}
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the assignment as JSON")

	removeCmd := &cobra.Command{
		Use:     "remove <tag>",
		Aliases: []string{"rm"},
		Short:   "Delete the assignment for one tag",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tagID, err := scanqueue.NormalizeTagID(args[0])
			if err != nil {
				return err
			}
			session, err := ctx.openAssignments(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()
			removed, err := session.Access.Remove(cmd.Context(), tagID)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "No assignment stored for tag %s\n", tagID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed assignment for tag %s\n", tagID)
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd, removeCmd)
	return cmd
}

func renderAssignments(out io.Writer, items []api.Assignment) {
	if len(items) == 0 {
		fmt.Fprintln(out, "No assignments stored")
		return
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		path := item.Path
		if item.Malformed {
			path = item.Value
		}
		rows = append(rows, []string{item.TagID, item.Kind, strconv.Itoa(item.Mode), path, item.UpdatedAt})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Tag", "Kind", "Mode", "Path", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
}
