package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/registry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var newNode registry.NewNode

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage peer nodes",
}

var nodeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a remote node",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), conf)
		if err != nil {
			return err
		}
		defer a.Close()

		node, err := a.registry.Register(cmd.Context(), newNode)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", node.BaseURL, node.Id)
		return nil
	},
}

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the local node and every registered peer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), conf)
		if err != nil {
			return err
		}
		defer a.Close()

		nodes, err := a.registry.List(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), nodeTable(nodes))
		return nil
	},
}

func nodeTable(nodes []domain.Node) string {
	t := table.New().Headers("ID", "BASE URL", "LOCAL", "ACTIVE", "USERNAME")
	for _, n := range nodes {
		t.Row(n.Id.String(), n.BaseURL, strconv.FormatBool(n.IsLocal), strconv.FormatBool(n.IsActive), n.Username)
	}
	return t.String()
}

func setActiveCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id|base-url>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), conf)
			if err != nil {
				return err
			}
			defer a.Close()

			node, err := lookupNode(cmd.Context(), a.registry, args[0])
			if err != nil {
				return err
			}
			if err := a.registry.SetActive(cmd.Context(), node.Id, active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s active=%t\n", node.BaseURL, active)
			return nil
		},
	}
}

var (
	outboundUsername string
	outboundPassword string
)

var nodeSetOutboundCmd = &cobra.Command{
	Use:   "set-outbound <id|base-url>",
	Short: "Change the credentials we present to a peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), conf)
		if err != nil {
			return err
		}
		defer a.Close()

		node, err := lookupNode(cmd.Context(), a.registry, args[0])
		if err != nil {
			return err
		}
		if err := a.registry.SetOutbound(cmd.Context(), node.Id, outboundUsername, outboundPassword); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s outbound credentials updated\n", node.BaseURL)
		return nil
	},
}

// lookupNode accepts either a node id or its base url.
func lookupNode(ctx context.Context, reg *registry.Registry, ref string) (*domain.Node, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return reg.ByID(ctx, id)
	}
	return reg.ByBaseURL(ctx, ref)
}

func init() {
	f := nodeAddCmd.Flags()
	f.StringVar(&newNode.BaseURL, "base-url", "", "API base url of the peer, e.g. https://peer.example/api/")
	f.StringVar(&newNode.Username, "username", "", "username the peer authenticates to us with")
	f.StringVar(&newNode.Password, "password", "", "password the peer authenticates to us with")
	f.StringVar(&newNode.OutboundUsername, "outbound-username", "", "username we present to the peer")
	f.StringVar(&newNode.OutboundPassword, "outbound-password", "", "password we present to the peer")
	_ = nodeAddCmd.MarkFlagRequired("base-url")
	_ = nodeAddCmd.MarkFlagRequired("username")
	_ = nodeAddCmd.MarkFlagRequired("password")

	so := nodeSetOutboundCmd.Flags()
	so.StringVar(&outboundUsername, "username", "", "username we present to the peer")
	so.StringVar(&outboundPassword, "password", "", "password we present to the peer")
	_ = nodeSetOutboundCmd.MarkFlagRequired("username")
	_ = nodeSetOutboundCmd.MarkFlagRequired("password")

	nodeCmd.AddCommand(nodeAddCmd, nodeListCmd, nodeSetOutboundCmd,
		setActiveCmd("activate", "Resume relaying to and accepting calls from a node", true),
		setActiveCmd("deactivate", "Stop relaying to and accepting calls from a node", false),
	)
}
