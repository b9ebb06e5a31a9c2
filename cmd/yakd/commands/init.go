package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initAddr string

var initCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Register a workspace and mount it",
	Long: `Register the workspace at path with a running daemon and print the NFS
endpoint serving its working copy. Repeating the command for the same path
returns the existing mount.

Examples:
  # Register the current checkout
  yakd init ~/src/project

  # Then mount it (Linux)
  mount -t nfs -o vers=3,tcp,port=<port>,mountport=<port>,nolock 127.0.0.1:/ ~/src/project`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initAddr, "addr", "", "daemon address (default: rpc.addr from the configuration)")
}

func runInit(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid workspace path: %w", err)
	}

	c, err := dialDaemon(cmd.Context(), initAddr)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	res, err := c.Initialize(cmd.Context(), path)
	if err != nil {
		return fmt.Errorf("initialize %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Workspace: %s\n", res.Workspace)
	fmt.Fprintf(out, "Mount ID:  %s\n", res.MountID)
	fmt.Fprintf(out, "Endpoint:  %s\n", endpoint(res.Host, res.Port))
	return nil
}
