package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/registry"
	"github.com/spf13/cobra"
)

var (
	authorDisplayName  string
	authorGithub       string
	authorProfileImage string
	authorPage         string
	authorNode         string
)

var authorCmd = &cobra.Command{
	Use:   "author",
	Short: "Manage local authors",
}

var authorAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a local author",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), conf)
		if err != nil {
			return err
		}
		defer a.Close()

		author, err := a.registry.CreateLocalAuthor(cmd.Context(), args[0], authorDisplayName, authorGithub)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), author.FQID)
		return nil
	},
}

var authorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local authors, or those of a peer with --node",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), conf)
		if err != nil {
			return err
		}
		defer a.Close()

		var authors []domain.Author
		if authorNode == "" {
			authors, err = a.registry.LocalAuthors(cmd.Context())
		} else {
			node, lerr := lookupNode(cmd.Context(), a.registry, authorNode)
			if lerr != nil {
				return lerr
			}
			authors, err = a.registry.AuthorsOf(cmd.Context(), node)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), authorTable(authors))
		return nil
	},
}

var authorUpdateCmd = &cobra.Command{
	Use:   "update <username>",
	Short: "Edit a local author's profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var u registry.ProfileUpdate
		f := cmd.Flags()
		if f.Changed("display-name") {
			u.DisplayName = &authorDisplayName
		}
		if f.Changed("github") {
			u.Github = &authorGithub
		}
		if f.Changed("profile-image") {
			u.ProfileImage = &authorProfileImage
		}
		if f.Changed("page") {
			u.Page = &authorPage
		}
		if u == (registry.ProfileUpdate{}) {
			return fmt.Errorf("%w: nothing to update", domain.ErrValidation)
		}

		a, err := openApp(cmd.Context(), conf)
		if err != nil {
			return err
		}
		defer a.Close()

		author, err := a.registry.UpdateLocalAuthor(cmd.Context(), args[0], u)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), authorTable([]domain.Author{*author}))
		return nil
	},
}

func authorTable(authors []domain.Author) string {
	t := table.New().Headers("USERNAME", "DISPLAY NAME", "FQID")
	for _, a := range authors {
		t.Row(a.Username, a.DisplayName, a.FQID)
	}
	return t.String()
}

func init() {
	authorAddCmd.Flags().StringVar(&authorDisplayName, "display-name", "", "name shown to readers")
	authorAddCmd.Flags().StringVar(&authorGithub, "github", "", "github profile url")
	authorListCmd.Flags().StringVar(&authorNode, "node", "", "id or base url of a peer")

	uf := authorUpdateCmd.Flags()
	uf.StringVar(&authorDisplayName, "display-name", "", "name shown to readers")
	uf.StringVar(&authorGithub, "github", "", "github profile url")
	uf.StringVar(&authorProfileImage, "profile-image", "", "avatar url")
	uf.StringVar(&authorPage, "page", "", "profile page url")

	authorCmd.AddCommand(authorAddCmd, authorListCmd, authorUpdateCmd)
}
