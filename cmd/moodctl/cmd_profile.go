package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"MoodCapture/pkg/moodclient"

	"github.com/spf13/cobra"
)

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update your lifestyle profile",
	}
	cmd.AddCommand(newProfileGetCmd(a), newProfileSetCmd(a), newProfileSchemaCmd(a))
	return cmd
}

func newProfileGetCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the stored profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			c := a.client()
			profile, err := c.GetProfile(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(profile)
			}
			schema, err := c.ProfileSchema(cmd.Context())
			if err != nil {
				return err
			}
			return printProfile(cmd, schema, profile)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newProfileSetCmd(a *app) *cobra.Command {
	var fields map[string]string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Save the profile, e.g. --field hobbies=Piano --field sleep_time=22:30",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			c := a.client()
			values := make(map[string]any, len(fields))
			// 合并已有资料，只覆盖传入的字段
			if current, err := c.GetProfile(cmd.Context()); err == nil {
				for k, v := range current {
					values[k] = v
				}
			}
			for k, v := range fields {
				values[k] = v
			}

			_, created, err := c.SaveProfile(cmd.Context(), values)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintln(cmd.OutOrStdout(), "profile created")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "profile updated")
			}
			return nil
		},
	}
	cmd.Flags().StringToStringVar(&fields, "field", nil, "Profile field as name=value (repeatable)")
	return cmd
}

func newProfileSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "List profile fields and their rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := a.client().ProfileSchema(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tLABEL")
			for _, f := range schema {
				typ := f.Type
				if len(f.Choices) > 0 {
					typ = fmt.Sprintf("%s%v", f.Type, f.Choices)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", f.Name, typ, f.Label)
			}
			return w.Flush()
		},
	}
}

func printProfile(cmd *cobra.Command, schema []moodclient.FieldSpec, profile moodclient.Profile) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, f := range schema {
		if v, ok := profile[f.Name]; ok {
			fmt.Fprintf(w, "%s\t%v\n", f.Label, v)
		}
	}
	return w.Flush()
}
