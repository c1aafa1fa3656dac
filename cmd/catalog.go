package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"radreject/internal/bootstrap"
	"radreject/internal/bootstrap/logging"
	"radreject/internal/errs"
	"radreject/internal/usecase/rejectrate"
)

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Manage reject categories",
}

var categoryCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a reject category",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		input := categoryInputFromFlags(cmd)
		category, err := svc.CreateCategory(ctx, input)
		if err != nil {
			return errs.Wrap(err, "create category")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "category created: %d %s (%s)\n", category.CategoryID, category.Name, category.Type)
		return nil
	}),
}

var categoryUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update a reject category",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		id, _ := cmd.Flags().GetUint64("id")
		category, err := svc.UpdateCategory(ctx, id, categoryInputFromFlags(cmd))
		if err != nil {
			return errs.Wrap(err, "update category")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "category updated: %d %s (%s) active=%t\n", category.CategoryID, category.Name, category.Type, category.Active)
		return nil
	}),
}

var categoryDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a category that has no reasons",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		id, _ := cmd.Flags().GetUint64("id")
		if err := svc.DeleteCategory(ctx, id); err != nil {
			return errs.Wrap(err, "delete category")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "category deleted: %d\n", id)
		return nil
	}),
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reject categories",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		all, _ := cmd.Flags().GetBool("all")
		categories, err := svc.ListCategories(ctx, all)
		if err != nil {
			return errs.Wrap(err, "list categories")
		}
		if format == "json" {
			return writeJSON(cmd, categories)
		}
		table := newTable(cmd, "ID", "NAME", "TYPE", "ACTIVE", "ORDER", "DESCRIPTION")
		for _, category := range categories {
			_, _ = fmt.Fprintf(table, "%d\t%s\t%s\t%t\t%d\t%s\n",
				category.CategoryID, category.Name, category.Type, category.Active, category.DisplayOrder, category.Description)
		}
		return table.Flush()
	}),
}

var reasonCmd = &cobra.Command{
	Use:   "reason",
	Short: "Manage reject reasons",
}

var reasonCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a reject reason under a category",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		categoryID, _ := cmd.Flags().GetUint64("category")
		text, _ := cmd.Flags().GetString("text")
		code, _ := cmd.Flags().GetString("compliance-code")
		severity, _ := cmd.Flags().GetString("severity")
		order, _ := cmd.Flags().GetInt("order")

		reason, err := svc.CreateReason(ctx, rejectrate.ReasonInput{
			CategoryID:     categoryID,
			Text:           text,
			ComplianceCode: code,
			Severity:       severity,
			DisplayOrder:   order,
		})
		if err != nil {
			return errs.Wrap(err, "create reason")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reason created: %d %s (%s)\n", reason.ReasonID, reason.Text, reason.Severity)
		return nil
	}),
}

var reasonDeactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Deactivate a reason so new incidents cannot use it",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		id, _ := cmd.Flags().GetUint64("id")
		activate, _ := cmd.Flags().GetBool("activate")
		if err := svc.SetReasonActive(ctx, id, activate); err != nil {
			return errs.Wrap(err, "set reason active")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reason %d active=%t\n", id, activate)
		return nil
	}),
}

var reasonListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reject reasons",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		categoryID, _ := cmd.Flags().GetUint64("category")
		all, _ := cmd.Flags().GetBool("all")
		reasons, err := svc.ListReasons(ctx, categoryID, all)
		if err != nil {
			return errs.Wrap(err, "list reasons")
		}
		if format == "json" {
			return writeJSON(cmd, reasons)
		}
		table := newTable(cmd, "ID", "CATEGORY", "TEXT", "SEVERITY", "CODE", "ACTIVE")
		for _, reason := range reasons {
			_, _ = fmt.Fprintf(table, "%d\t%d\t%s\t%s\t%s\t%t\n",
				reason.ReasonID, reason.CategoryID, reason.Text, reason.Severity, valueOr(&reason.ComplianceCode, "-"), reason.Active)
		}
		return table.Flush()
	}),
}

func categoryInputFromFlags(cmd *cobra.Command) rejectrate.CategoryInput {
	name, _ := cmd.Flags().GetString("name")
	categoryType, _ := cmd.Flags().GetString("type")
	description, _ := cmd.Flags().GetString("description")
	order, _ := cmd.Flags().GetInt("order")

	input := rejectrate.CategoryInput{
		Name:         name,
		Type:         categoryType,
		Description:  description,
		DisplayOrder: order,
	}
	if cmd.Flags().Changed("active") {
		active, _ := cmd.Flags().GetBool("active")
		input.Active = &active
	}
	return input
}

func addCategoryFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Category name")
	cmd.Flags().String("type", "", "Category type: HUMAN_FAULT|EQUIPMENT|PROCESSING|OTHER")
	cmd.Flags().String("description", "", "Category description")
	cmd.Flags().Bool("active", true, "Whether the category is active")
	cmd.Flags().Int("order", 0, "Display order")
}

func init() {
	rootCmd.AddCommand(categoryCmd, reasonCmd)
	categoryCmd.AddCommand(categoryCreateCmd, categoryUpdateCmd, categoryDeleteCmd, categoryListCmd)
	reasonCmd.AddCommand(reasonCreateCmd, reasonDeactivateCmd, reasonListCmd)

	addCategoryFlags(categoryCreateCmd)
	_ = categoryCreateCmd.MarkFlagRequired("name")
	_ = categoryCreateCmd.MarkFlagRequired("type")

	categoryUpdateCmd.Flags().Uint64("id", 0, "Category id")
	addCategoryFlags(categoryUpdateCmd)
	_ = categoryUpdateCmd.MarkFlagRequired("id")

	categoryDeleteCmd.Flags().Uint64("id", 0, "Category id")
	_ = categoryDeleteCmd.MarkFlagRequired("id")

	categoryListCmd.Flags().Bool("all", false, "Include inactive categories")
	addFormatFlag(categoryListCmd)

	reasonCreateCmd.Flags().Uint64("category", 0, "Category id")
	reasonCreateCmd.Flags().String("text", "", "Reason text")
	reasonCreateCmd.Flags().String("compliance-code", "", "Regulatory compliance code")
	reasonCreateCmd.Flags().String("severity", "MEDIUM", "Severity: LOW|MEDIUM|HIGH|CRITICAL")
	reasonCreateCmd.Flags().Int("order", 0, "Display order")
	_ = reasonCreateCmd.MarkFlagRequired("category")
	_ = reasonCreateCmd.MarkFlagRequired("text")

	reasonDeactivateCmd.Flags().Uint64("id", 0, "Reason id")
	reasonDeactivateCmd.Flags().Bool("activate", false, "Reactivate instead of deactivating")
	_ = reasonDeactivateCmd.MarkFlagRequired("id")

	reasonListCmd.Flags().Uint64("category", 0, "Filter by category id")
	reasonListCmd.Flags().Bool("all", false, "Include inactive reasons")
	addFormatFlag(reasonListCmd)
}
