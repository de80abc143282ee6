package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boardcore/altiumdrc/internal/altiumclient"
)

func newClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Talk to a running Altium command_server.pas script over its file protocol",
	}
	cmd.AddCommand(newClientPingCmd())
	cmd.AddCommand(newClientRunDRCCmd())
	cmd.AddCommand(newClientExportCmd())
	return cmd
}

func newAltiumClient() (*altiumclient.Client, error) {
	cfg, log, err := loadRuntime()
	if err != nil {
		return nil, err
	}
	return altiumclient.New(cfg.Client, log), nil
}

func newClientPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check whether command_server.pas is running and responsive",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAltiumClient()
			if err != nil {
				return err
			}
			ok, err := c.Ping(context.Background())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("script server did not report success")
			}
			fmt.Println("script server is running")
			return nil
		},
	}
}

func newClientRunDRCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-drc",
		Short: "Ask Altium to run its native Design Rule Check",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAltiumClient()
			if err != nil {
				return err
			}
			return c.RunDRC(context.Background())
		},
	}
}

func newClientExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-pcb-info",
		Short: "Ask Altium to re-export a fresh board snapshot to disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAltiumClient()
			if err != nil {
				return err
			}
			return c.ExportPCBInfo(context.Background())
		},
	}
}
