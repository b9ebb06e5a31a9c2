package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/marmos91/yak/internal/protocol/yak"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	statusAddr   string
	statusOutput string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Ask a running daemon for its version, uptime, object counts and mounts.

Examples:
  # Query the daemon at the configured rpc.addr
  yakd status

  # Query a specific address and print JSON
  yakd status --addr 127.0.0.1:4751 --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "daemon address (default: rpc.addr from the configuration)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

type mountView struct {
	Workspace string `json:"workspace" yaml:"workspace"`
	MountID   string `json:"mount_id" yaml:"mount_id"`
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	State     string `json:"state" yaml:"state"`
}

// DaemonStatus is the printable form of a DAEMON_STATUS reply.
type DaemonStatus struct {
	Version    string      `json:"version" yaml:"version"`
	Uptime     string      `json:"uptime" yaml:"uptime"`
	Files      uint64      `json:"files" yaml:"files"`
	Symlinks   uint64      `json:"symlinks" yaml:"symlinks"`
	Trees      uint64      `json:"trees" yaml:"trees"`
	Commits    uint64      `json:"commits" yaml:"commits"`
	Workspaces uint32      `json:"workspaces" yaml:"workspaces"`
	Mounts     []mountView `json:"mounts" yaml:"mounts"`
}

func newDaemonStatus(res *yak.DaemonStatusResult) DaemonStatus {
	st := DaemonStatus{
		Version:    res.Version,
		Uptime:     (time.Duration(res.UptimeSeconds) * time.Second).String(),
		Files:      res.Files,
		Symlinks:   res.Symlinks,
		Trees:      res.Trees,
		Commits:    res.Commits,
		Workspaces: res.Workspaces,
		Mounts:     make([]mountView, 0, len(res.Mounts)),
	}
	for _, m := range res.Mounts {
		st.Mounts = append(st.Mounts, mountView{
			Workspace: m.Workspace,
			MountID:   m.MountID,
			Endpoint:  endpoint(m.Host, m.Port),
			State:     m.State,
		})
	}
	return st
}

// endpoint is empty for workspaces without a server.
func endpoint(host string, port uint32) string {
	if port == 0 {
		return ""
	}
	return net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10))
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := dialDaemon(cmd.Context(), statusAddr)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	res, err := c.DaemonStatus(cmd.Context())
	if err != nil {
		return fmt.Errorf("daemon status: %w", err)
	}
	return printStatus(cmd.OutOrStdout(), statusOutput, newDaemonStatus(res))
}

func printStatus(w io.Writer, format string, st DaemonStatus) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(st)
	case "table", "":
	default:
		return fmt.Errorf("unknown output format %q (use table, json or yaml)", format)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Version:\t%s\n", st.Version)
	fmt.Fprintf(tw, "Uptime:\t%s\n", st.Uptime)
	fmt.Fprintf(tw, "Objects:\t%d files, %d symlinks, %d trees, %d commits\n", st.Files, st.Symlinks, st.Trees, st.Commits)
	fmt.Fprintf(tw, "Workspaces:\t%d\n", st.Workspaces)
	if len(st.Mounts) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "WORKSPACE\tMOUNT ID\tENDPOINT\tSTATE")
		for _, m := range st.Mounts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Workspace, m.MountID, m.Endpoint, m.State)
		}
	}
	return tw.Flush()
}
