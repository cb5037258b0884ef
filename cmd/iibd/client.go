package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/imroc/req"
	"github.com/spf13/cobra"

	"github.com/sweeney/iib-interlock/internal/config"
	"github.com/sweeney/iib-interlock/internal/status"
	"github.com/sweeney/iib-interlock/internal/web"
)

// apiClient talks to the status server of a running iibd.
type apiClient struct {
	base string
}

// newAPIClient uses addr when set, otherwise the configured HTTP address on
// localhost.
func newAPIClient(cfg *config.Config, addr string) (*apiClient, error) {
	if addr == "" {
		addr = cfg.HTTP.Addr
	}
	if addr == "" {
		return nil, errors.New("no status server address (http.addr is empty)")
	}
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return &apiClient{base: strings.TrimSuffix(addr, "/")}, nil
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("status server address %q: %w", addr, err)
	}
	if host == "" {
		host = "localhost"
	}
	return &apiClient{base: "http://" + net.JoinHostPort(host, port)}, nil
}

func (c *apiClient) Status() (*status.StatusJSON, error) {
	r, err := req.Get(c.base + "/index.json")
	if err != nil {
		return nil, err
	}
	if r.Response().StatusCode != http.StatusOK {
		return nil, errors.New(r.Response().Status)
	}
	sj := &status.StatusJSON{}
	if err := r.ToJSON(sj); err != nil {
		return nil, err
	}
	return sj, nil
}

func (c *apiClient) History(n int) ([]web.HistoryEntry, error) {
	r, err := req.Get(c.base+"/api/history", req.QueryParam{"n": n})
	if err != nil {
		return nil, err
	}
	if r.Response().StatusCode != http.StatusOK {
		return nil, errors.New(r.Response().Status)
	}
	var entries []web.HistoryEntry
	if err := r.ToJSON(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *apiClient) Clear() error {
	r, err := req.Post(c.base + "/api/clear")
	if err != nil {
		return err
	}
	if r.Response().StatusCode != http.StatusAccepted {
		return errors.New(r.Response().Status)
	}
	return nil
}

func newStatusCommand(opts *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			c, err := newAPIClient(cfg, addr)
			if err != nil {
				return err
			}
			sj, err := c.Status()
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(sj.Status))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Status server address (default: http.addr from config)")
	return cmd
}

func newHistoryCommand(opts *globalOptions) *cobra.Command {
	var (
		addr string
		n    int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent interlock, alarm and clear events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			c, err := newAPIClient(cfg, addr)
			if err != nil {
				return err
			}
			entries, err := c.History(n)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderHistory(entries))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Status server address (default: http.addr from config)")
	cmd.Flags().IntVarP(&n, "count", "n", 20, "Number of events")
	return cmd
}

func newClearCommand(opts *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the latched interlocks and alarms of a running board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			c, err := newAPIClient(cfg, addr)
			if err != nil {
				return err
			}
			if err := c.Clear(); err != nil {
				return fmt.Errorf("clear: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "clear requested")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Status server address (default: http.addr from config)")
	return cmd
}
